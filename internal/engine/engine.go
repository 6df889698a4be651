package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"atelier/internal/config"
	"atelier/internal/domain"
	"atelier/internal/events"
	"atelier/internal/notify"
	"atelier/internal/phase"
	"atelier/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	// Mailer delivers completion notifications; nil disables sending.
	Mailer notify.Sender
	// Confirm is asked before notifications go out. Nil means confirmed.
	Confirm notify.ConfirmFunc

	guard *inflightGuard
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		guard:  newInflightGuard(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// inflightGuard is an advisory in-memory set of stage ids with an action
// in flight. It rejects doubled-up submissions from one process; it is not
// a lock and concurrent writers from elsewhere remain last-write-wins.
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: map[string]bool{}}
}

func (g *inflightGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false
	}
	g.keys[key] = true
	return true
}

func (g *inflightGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}

// --- clients ---

func (e Engine) CreateClient(ctx context.Context, c domain.Client, actorID string) (domain.Client, error) {
	if c.Name == "" {
		return domain.Client{}, errors.New("name is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
		return domain.Client{}, fmt.Errorf("insert client: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "client.created", "client", c.ID, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

// --- projects ---

type ProjectCreateOptions struct {
	ID          string
	ClientID    string
	Name        string
	Address     string
	StartDate   string
	InstallDate string
	ActorID     string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.ClientID == "" {
		return domain.Project{}, errors.New("client is required")
	}
	if _, err := e.Repo.GetClient(ctx, opts.ClientID); err != nil {
		return domain.Project{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Project{
		ID:          id,
		ClientID:    opts.ClientID,
		Name:        opts.Name,
		Status:      "active",
		Address:     opts.Address,
		StartDate:   optionalString(opts.StartDate),
		InstallDate: optionalString(opts.InstallDate),
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", "project", p.ID, opts.ActorID, events.EventPayload{"name": p.Name, "client_id": p.ClientID}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func ensureProjectTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "active":
		if newStatus == "on_hold" || newStatus == "archived" {
			return nil
		}
	case "on_hold":
		if newStatus == "active" || newStatus == "archived" {
			return nil
		}
	}
	return fmt.Errorf("invalid project status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetProjectStatus(ctx context.Context, id, status, actorID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return p, err
	}
	if err := ensureProjectTransition(p.Status, status); err != nil {
		return p, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "project.status", "project", id, actorID, events.EventPayload{"from": p.Status, "to": status}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = status
	return p, nil
}

// --- rooms ---

// RoomState is a room together with its full, ordered stage list. Every
// mutation hands one back so callers always render from a fresh read.
type RoomState struct {
	Room   domain.Room    `json:"room"`
	Stages []domain.Stage `json:"stages"`
}

// CreateRoom inserts the room and pre-provisions one pending stage per
// phase in the canonical sequence.
func (e Engine) CreateRoom(ctx context.Context, projectID, name, actorID string) (RoomState, error) {
	if name == "" {
		return RoomState{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return RoomState{}, err
	}
	now := e.nowRFC3339()
	room := domain.Room{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return RoomState{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRoom(ctx, tx, room); err != nil {
		return RoomState{}, fmt.Errorf("insert room: %w", err)
	}
	for _, kind := range phase.Sequence {
		s := domain.Stage{
			ID:        uuid.New().String(),
			RoomID:    room.ID,
			Phase:     kind,
			Status:    "pending",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertStage(ctx, tx, s); err != nil {
			return RoomState{}, fmt.Errorf("insert stage %s: %w", kind, err)
		}
	}
	if err := e.Events.Append(ctx, tx, "room.created", "room", room.ID, actorID, events.EventPayload{"name": room.Name, "project_id": projectID}); err != nil {
		return RoomState{}, err
	}
	if err := tx.Commit(); err != nil {
		return RoomState{}, err
	}
	return e.RoomState(ctx, room.ID)
}

// RoomState reloads the room and all of its stages.
func (e Engine) RoomState(ctx context.Context, roomID string) (RoomState, error) {
	room, err := e.Repo.GetRoom(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	stages, err := e.Repo.ListStages(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	return RoomState{Room: room, Stages: stages}, nil
}

func (e Engine) DeleteRoom(ctx context.Context, roomID, actorID string) error {
	if err := e.Repo.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "room.deleted", "room", roomID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// --- team members ---

func (e Engine) CreateMember(ctx context.Context, m domain.TeamMember, actorID string) (domain.TeamMember, error) {
	if m.Name == "" || m.Email == "" {
		return domain.TeamMember{}, errors.New("name and email are required")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMember(ctx, tx, m); err != nil {
		return domain.TeamMember{}, fmt.Errorf("insert member: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "member.created", "member", m.ID, actorID, events.EventPayload{"name": m.Name}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
