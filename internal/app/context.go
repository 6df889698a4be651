package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/engine"
	"atelier/internal/migrate"
	"atelier/internal/notify"
)

// Session bundles everything a command needs to work against a workspace:
// a migrated database, the workspace config, and an engine wired with the
// configured notification gateway.
type Session struct {
	Engine engine.Engine
	Config *config.Config

	closeDB func() error
}

func (s *Session) Close() error {
	if s.closeDB == nil {
		return nil
	}
	return s.closeDB()
}

// Open prepares a workspace for use. The sqlite database is created and
// migrated if needed, atelier.yml is loaded (defaults when absent), and the
// engine gets a mailer only when a gateway URL is configured. confirm may be
// nil; with confirm_before_send disabled it is ignored either way.
func Open(workspace string, confirm notify.ConfirmFunc, logger *zap.Logger) (*Session, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := engine.New(conn, cfg)
	if cfg.Notify.GatewayURL != "" {
		e.Mailer = notify.NewGateway(cfg.Notify, logger)
	}
	if cfg.ConfirmBeforeSend() {
		e.Confirm = confirm
	}
	return &Session{Engine: e, Config: cfg, closeDB: conn.Close}, nil
}

// TerminalConfirm builds a ConfirmFunc that asks on the terminal. Anything
// other than y/yes declines.
func TerminalConfirm(in io.Reader, out io.Writer) notify.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
