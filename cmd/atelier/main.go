package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"atelier/internal/app"
	"atelier/internal/billing"
	"atelier/internal/calendar"
	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/domain"
	"atelier/internal/engine"
	"atelier/internal/ffe"
	"atelier/internal/phase"
	"atelier/internal/repo"
	"atelier/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier CLI",
	Long: `Atelier runs the back office of an interior design studio.
Core concepts:
- Workspace: a directory holding the studio database plus atelier.yml.
- Clients own projects; projects own rooms.
- Every room moves through five design phases: Design Concept, 3D Rendering,
  Client Approval, Drawings, and FFE Sourcing. Client Approval fans out into
  Drawings and FFE, which run in parallel.
- Completing a phase offers to email the team members assigned to whatever
  comes next; emailing never blocks the phase change itself.
- Proposals carry line items, tax, and a payment schedule; invoices are
  numbered from them. FFE products export to a spreadsheet per room.
- Event log: diary of changes, view with 'atelier log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.EnsureWorkspace(viper.GetString("workspace")); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ATELIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "studio-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(roomCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(productCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", path)
			}
			s, err := app.Open(workspace, nil, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Println("workspace ready:", db.Path(workspace))
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return printJSONOrTable(s.Config)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Manage clients"}
	c.AddCommand(clientCreateCmd())
	c.AddCommand(clientListCmd())
	c.AddCommand(clientShowCmd())
	c.AddCommand(clientDeleteCmd())
	return c
}

func clientCreateCmd() *cobra.Command {
	var c domain.Client
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.CreateClient(ctx, c, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&c.Name, "name", "", "client name")
	cmd.Flags().StringVar(&c.Email, "email", "", "email")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&c.Address, "address", "", "address")
	cmd.Flags().StringVar(&c.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func clientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListClients(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Phone"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Email, c.Phone})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func clientShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				c, err := s.Engine.Repo.GetClient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func clientDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return s.Engine.Repo.DeleteClient(ctx, args[0])
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	p := &cobra.Command{Use: "project", Short: "Manage projects"}
	p.AddCommand(projectCreateCmd())
	p.AddCommand(projectListCmd())
	p.AddCommand(projectShowCmd())
	p.AddCommand(projectStatusCmd())
	p.AddCommand(projectDeleteCmd())
	return p
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional)")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Address, "address", "", "site address")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.InstallDate, "install-date", "", "install date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Client", "Status", "Install"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.ClientID, p.Status, deref(p.InstallDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its rooms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				rooms, err := s.Engine.Repo.ListRooms(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"project": p, "rooms": rooms})
			})
		},
	}
	return cmd
}

func projectStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update project status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.SetProjectStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (active, on_hold, archived)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return s.Engine.Repo.DeleteProject(ctx, args[0])
			})
		},
	}
	return cmd
}

func roomCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "room",
		Short: "Manage rooms",
		Long:  "Rooms come with their five phases pre-provisioned. 'room show' lists them with ids for stage commands.",
	}
	r.AddCommand(roomCreateCmd())
	r.AddCommand(roomShowCmd())
	r.AddCommand(roomAssignCmd())
	r.AddCommand(roomExportCmd())
	r.AddCommand(roomDeleteCmd())
	return r
}

func roomCreateCmd() *cobra.Command {
	var projectID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				state, err := s.Engine.CreateRoom(ctx, projectID, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printRoomState(state)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "room name")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func roomShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a room and its phases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				state, err := s.Engine.RoomState(ctx, args[0])
				if err != nil {
					return err
				}
				return printRoomState(state)
			})
		},
	}
	return cmd
}

func roomAssignCmd() *cobra.Command {
	var member string
	var clear bool
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign every phase of a room to one member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" && !clear {
				return fmt.Errorf("--member or --clear required")
			}
			var memberID *string
			if !clear {
				memberID = &member
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				state, err := s.Engine.BulkAssign(ctx, args[0], memberID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printRoomState(state)
			})
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&member, "member", "", "member id")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear assignments")
	return cmd
}

func roomExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-ffe <id>",
		Short: "Export the room's FFE schedule to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				room, err := s.Engine.Repo.GetRoom(ctx, args[0])
				if err != nil {
					return err
				}
				products, err := s.Engine.Repo.ListProducts(ctx, room.ID)
				if err != nil {
					return err
				}
				data, err := ffe.Export(room.Name, products)
				if err != nil {
					return err
				}
				if out == "" {
					out = fmt.Sprintf("ffe-%s.xlsx", room.ID)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default ffe-<room>.xlsx)")
	return cmd
}

func roomDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return s.Engine.DeleteRoom(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func stageCmd() *cobra.Command {
	st := &cobra.Command{
		Use:   "stage",
		Short: "Move a room phase",
		Long:  "Phases flow pending -> in_progress -> complete; not_applicable shelves one. Completing asks before emailing the members assigned to the next phase.",
	}
	st.AddCommand(stageActionCmd("start", "Start a phase", engine.ActionStart))
	st.AddCommand(stageCompleteCmd())
	st.AddCommand(stageActionCmd("reopen", "Reopen a completed phase", engine.ActionReopen))
	st.AddCommand(stageActionCmd("skip", "Mark a phase not applicable", engine.ActionMarkNotApplicable))
	st.AddCommand(stageActionCmd("restore", "Bring a skipped phase back", engine.ActionMarkApplicable))
	st.AddCommand(stageAssignCmd())
	st.AddCommand(stageDueCmd())
	return st
}

func stageActionCmd(use, short string, action engine.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <stage-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.ApplyAction(ctx, engine.ActionOptions{
					StageID: args[0],
					Action:  action,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printActionResult(res)
			})
		},
	}
}

func stageCompleteCmd() *cobra.Command {
	var yes, skipNotify bool
	cmd := &cobra.Command{
		Use:   "complete <stage-id>",
		Short: "Complete a phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var confirmed *bool
			if yes {
				t := true
				confirmed = &t
			}
			if skipNotify {
				f := false
				confirmed = &f
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.ApplyAction(ctx, engine.ActionOptions{
					StageID:         args[0],
					Action:          engine.ActionComplete,
					NotifyConfirmed: confirmed,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printActionResult(res)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "send notifications without asking")
	cmd.Flags().BoolVar(&skipNotify, "skip-notify", false, "complete without emailing anyone")
	return cmd
}

func stageAssignCmd() *cobra.Command {
	var member string
	var clear bool
	cmd := &cobra.Command{
		Use:   "assign <stage-id>",
		Short: "Assign a phase to a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" && !clear {
				return fmt.Errorf("--member or --clear required")
			}
			var memberID *string
			if !clear {
				memberID = &member
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.ApplyAction(ctx, engine.ActionOptions{
					StageID:  args[0],
					Action:   engine.ActionAssign,
					MemberID: memberID,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printActionResult(res)
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "member id")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the assignee")
	return cmd
}

func stageDueCmd() *cobra.Command {
	var date string
	var clear bool
	cmd := &cobra.Command{
		Use:   "due <stage-id>",
		Short: "Set or clear a phase due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" && !clear {
				return fmt.Errorf("--date or --clear required")
			}
			var due *string
			if !clear {
				due = &date
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.ApplyAction(ctx, engine.ActionOptions{
					StageID: args[0],
					Action:  engine.ActionSetDueDate,
					DueDate: due,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printActionResult(res)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the due date")
	return cmd
}

func memberCmd() *cobra.Command {
	m := &cobra.Command{Use: "member", Short: "Manage team members"}
	m.AddCommand(memberCreateCmd())
	m.AddCommand(memberListCmd())
	m.AddCommand(memberDeleteCmd())
	return m
}

func memberCreateCmd() *cobra.Command {
	var m domain.TeamMember
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.CreateMember(ctx, m, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&m.Name, "name", "", "member name")
	cmd.Flags().StringVar(&m.Email, "email", "", "email")
	cmd.Flags().StringVar(&m.Role, "role", "", "role (designer, drafter, purchaser, ...)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func memberListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListMembers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Name, m.Email, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func memberDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return s.Engine.Repo.DeleteMember(ctx, args[0])
			})
		},
	}
	return cmd
}

func productCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "product",
		Short: "Manage FFE products",
		Long:  "Products are furniture, fixtures, and equipment specified per room. They move proposed -> approved -> ordered -> delivered.",
	}
	p.AddCommand(productAddCmd())
	p.AddCommand(productListCmd())
	p.AddCommand(productStatusCmd())
	p.AddCommand(productDeleteCmd())
	return p
}

func productAddCmd() *cobra.Command {
	var p domain.Product
	var leadWeeks int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("lead-weeks") {
				p.LeadTimeWeeks = &leadWeeks
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				res, err := s.Engine.CreateProduct(ctx, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&p.RoomID, "room", "", "room id")
	cmd.Flags().StringVar(&p.Name, "name", "", "product name")
	cmd.Flags().StringVar(&p.Vendor, "vendor", "", "vendor")
	cmd.Flags().StringVar(&p.SKU, "sku", "", "vendor SKU")
	cmd.Flags().StringVar(&p.Category, "category", "", "category (seating, lighting, ...)")
	cmd.Flags().Int64Var(&p.UnitPriceCents, "unit-price-cents", 0, "unit price in cents")
	cmd.Flags().IntVar(&p.Quantity, "quantity", 1, "quantity")
	cmd.Flags().IntVar(&leadWeeks, "lead-weeks", 0, "lead time in weeks")
	cmd.Flags().StringVar(&p.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func productListCmd() *cobra.Command {
	var roomID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products for a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListProducts(ctx, roomID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Vendor", "Qty", "Unit", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Vendor, p.Quantity, dollars(p.UnitPriceCents), p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room id")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func productStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update product status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.SetProductStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (proposed, approved, ordered, delivered)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func productDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				return s.Engine.Repo.DeleteProduct(ctx, args[0])
			})
		},
	}
	return cmd
}

func proposalCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "proposal",
		Short: "Manage proposals",
		Long:  "Proposals carry line items, a design fee, tax, and an optional payment schedule whose splits must sum to 100%. They flow draft -> sent -> approved/declined.",
	}
	p.AddCommand(proposalCreateCmd())
	p.AddCommand(proposalListCmd())
	p.AddCommand(proposalShowCmd())
	p.AddCommand(proposalStatusCmd())
	return p
}

func proposalCreateCmd() *cobra.Command {
	var opts engine.ProposalCreateOptions
	var taxRate int
	var itemsJSON, scheduleJSON string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("tax-rate-bp") {
				opts.TaxRateBP = &taxRate
			}
			if itemsJSON != "" {
				if err := json.Unmarshal([]byte(itemsJSON), &opts.Items); err != nil {
					return fmt.Errorf("invalid --items-json: %w", err)
				}
			}
			if scheduleJSON != "" {
				if err := json.Unmarshal([]byte(scheduleJSON), &opts.Schedule); err != nil {
					return fmt.Errorf("invalid --schedule-json: %w", err)
				}
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.CreateProposal(ctx, opts)
				if err != nil {
					return err
				}
				return printProposal(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "proposal title")
	cmd.Flags().IntVar(&taxRate, "tax-rate-bp", 0, "tax rate in basis points (default from config)")
	cmd.Flags().Int64Var(&opts.DesignFeeCents, "design-fee-cents", 0, "design fee in cents")
	cmd.Flags().StringVar(&itemsJSON, "items-json", "", `line items, e.g. [{"description":"Sofa","unit_price_cents":240000,"quantity":1,"taxable":true}]`)
	cmd.Flags().StringVar(&scheduleJSON, "schedule-json", "", `payment splits, e.g. [{"label":"Deposit","percent_bp":5000},{"label":"Final","percent_bp":5000}]`)
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func proposalListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListProposals(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Total"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Status, dollars(billing.ComputeTotals(p).GrandTotalCents)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func proposalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a proposal with computed totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.Repo.GetProposal(ctx, args[0])
				if err != nil {
					return err
				}
				return printProposal(p)
			})
		},
	}
	return cmd
}

func proposalStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update proposal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				p, err := s.Engine.SetProposalStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printProposal(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (sent, approved, declined)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func invoiceCmd() *cobra.Command {
	i := &cobra.Command{Use: "invoice", Short: "Manage invoices"}
	i.AddCommand(invoiceCreateCmd())
	i.AddCommand(invoiceListCmd())
	i.AddCommand(invoiceShowCmd())
	i.AddCommand(invoiceStatusCmd())
	return i
}

func invoiceCreateCmd() *cobra.Command {
	var opts engine.InvoiceCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice",
		Long:  "With --proposal and no --amount-cents the amount is the proposal's computed grand total.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				inv, err := s.Engine.CreateInvoice(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.ProposalID, "proposal", "", "proposal id")
	cmd.Flags().Int64Var(&opts.AmountDueCents, "amount-cents", 0, "amount due in cents")
	cmd.Flags().StringVar(&opts.DueDate, "due-date", "", "due date (YYYY-MM-DD, default from config)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func invoiceListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				items, err := s.Engine.Repo.ListInvoices(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Number", "ID", "Status", "Amount", "Due"})
				for _, inv := range items {
					tw.AppendRow(table.Row{inv.Number, inv.ID, inv.Status, dollars(inv.AmountDueCents), deref(inv.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func invoiceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				inv, err := s.Engine.Repo.GetInvoice(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	return cmd
}

func invoiceStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update invoice status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				inv, err := s.Engine.SetInvoiceStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (sent, paid, void)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func calendarCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Upcoming due dates",
		Long:  "Phase due dates, invoice due dates, and project start/install dates, grouped by day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				from = time.Now().UTC().Format("2006-01-02")
			}
			if to == "" {
				to = time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
			}
			if from > to {
				return fmt.Errorf("from %s is after to %s", from, to)
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				stages, err := s.Engine.Repo.ListStagesDueBetween(ctx, from, to)
				if err != nil {
					return err
				}
				invoices, err := s.Engine.Repo.ListInvoicesDueBetween(ctx, from, to)
				if err != nil {
					return err
				}
				projects, err := s.Engine.Repo.ListProjects(ctx, repo.ProjectFilters{})
				if err != nil {
					return err
				}
				days := calendar.Collect(from, to, stages, invoices, projects)
				if viper.GetBool("json") {
					return printJSON(days)
				}
				for _, day := range days {
					fmt.Println(day.Date)
					for _, e := range day.Entries {
						fmt.Printf("  %-14s %s\n", e.Kind, e.Label)
					}
				}
				if len(days) == 0 {
					fmt.Println("nothing due between", from, "and", to)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "range end (YYYY-MM-DD, default one month out)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				events, err := s.Engine.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			// The API confirms via the notify_confirmed request field, not a
			// terminal prompt.
			s, err := app.Open(viper.GetString("workspace"), nil, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			handler, err := server.New(server.Config{Engine: s.Engine, BasePath: basePath, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Atelier API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withSession(ctx context.Context, fn func(context.Context, *app.Session) error) error {
	confirm := app.TerminalConfirm(os.Stdin, os.Stdout)
	s, err := app.Open(viper.GetString("workspace"), confirm, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printRoomState(state engine.RoomState) error {
	if viper.GetBool("json") {
		return printJSON(state)
	}
	fmt.Printf("Room: %s (%s)\n", state.Room.Name, state.Room.ID)
	renderStages(state.Stages)
	return nil
}

func printActionResult(res engine.ActionResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	fmt.Printf("Room: %s (%s)\n", res.Room.Name, res.Room.ID)
	renderStages(res.Stages)
	if res.Notifications.Sent > 0 || res.Notifications.Failed > 0 {
		fmt.Println("Notifications:", res.Notifications.String())
		for _, e := range res.Notifications.Errors {
			fmt.Println("  !", e)
		}
	}
	return nil
}

func renderStages(stages []domain.Stage) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Phase", "Status", "Assignee", "Due"})
	for _, s := range stages {
		tw.AppendRow(table.Row{s.ID, phase.Label(s.Phase), s.Status, deref(s.AssigneeID), deref(s.DueDate)})
	}
	tw.Render()
}

func printProposal(p domain.Proposal) error {
	totals := billing.ComputeTotals(p)
	if viper.GetBool("json") {
		return printJSON(map[string]any{"proposal": p, "totals": totals})
	}
	fmt.Printf("%s (%s) [%s]\n", p.Title, p.ID, p.Status)
	tw := newTable()
	tw.AppendHeader(table.Row{"Description", "Qty", "Unit", "Total"})
	for _, item := range p.Items {
		tw.AppendRow(table.Row{item.Description, item.Quantity, dollars(item.UnitPriceCents), dollars(billing.LineTotal(item))})
	}
	tw.Render()
	fmt.Println("Subtotal:  ", dollars(totals.SubtotalCents))
	fmt.Println("Design fee:", dollars(p.DesignFeeCents))
	fmt.Println("Tax:       ", dollars(totals.TaxCents))
	fmt.Println("Total:     ", dollars(totals.GrandTotalCents))
	if len(p.Schedule) > 0 {
		fmt.Println("Schedule:")
		for _, sa := range billing.ScheduleAmounts(totals.GrandTotalCents, p.Schedule) {
			fmt.Printf("  %-12s %s\n", sa.Label, dollars(sa.AmountCents))
		}
	}
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dollars(c int64) string {
	return fmt.Sprintf("$%.2f", float64(c)/100)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
