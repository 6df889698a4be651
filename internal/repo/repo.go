package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"atelier/internal/domain"
	"atelier/internal/phase"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- clients ---

func (r Repo) InsertClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO clients(id,name,email,phone,address,notes,created_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.Name, nullable(c.Email), nullable(c.Phone), nullable(c.Address), nullable(c.Notes), c.CreatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	var email, phone, address, notes sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,phone,address,notes,created_at FROM clients WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &email, &phone, &address, &notes, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.Notes = notes.String
	return c, nil
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(email,''),COALESCE(phone,''),COALESCE(address,''),COALESCE(notes,''),created_at FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE clients SET name=?, email=?, phone=?, address=?, notes=? WHERE id=?`,
		c.Name, nullable(c.Email), nullable(c.Phone), nullable(c.Address), nullable(c.Notes), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- projects ---

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,client_id,name,status,address,start_date,install_date,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.ClientID, p.Name, p.Status, nullable(p.Address), nullableStringPtr(p.StartDate), nullableStringPtr(p.InstallDate), p.CreatedAt)
	return err
}

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var address sql.NullString
	var startDate, installDate sql.NullString
	err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Status, &address, &startDate, &installDate, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Address = address.String
	if startDate.Valid {
		p.StartDate = &startDate.String
	}
	if installDate.Valid {
		p.InstallDate = &installDate.String
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT id,client_id,name,status,address,start_date,install_date,created_at FROM projects WHERE id=?`, id))
}

type ProjectFilters struct {
	ClientID string
	Status   string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,client_id,name,status,address,start_date,install_date,created_at FROM projects `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var address, startDate, installDate sql.NullString
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.Status, &address, &startDate, &installDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Address = address.String
		if startDate.Valid {
			p.StartDate = &startDate.String
		}
		if installDate.Valid {
			p.InstallDate = &installDate.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, id, status string, address *string, startDate, installDate *string) error {
	var (
		fields []string
		args   []any
	)
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if address != nil {
		fields = append(fields, "address=?")
		args = append(args, nullable(*address))
	}
	if startDate != nil {
		fields = append(fields, "start_date=?")
		args = append(args, nullable(*startDate))
	}
	if installDate != nil {
		fields = append(fields, "install_date=?")
		args = append(args, nullable(*installDate))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- rooms ---

func (r Repo) InsertRoom(ctx context.Context, tx *sql.Tx, room domain.Room) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO rooms(id,project_id,name,created_at) VALUES (?,?,?,?)`,
		room.ID, room.ProjectID, room.Name, room.CreatedAt)
	return err
}

func (r Repo) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	var room domain.Room
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,created_at FROM rooms WHERE id=?`, id).
		Scan(&room.ID, &room.ProjectID, &room.Name, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return room, ErrNotFound
	}
	return room, err
}

func (r Repo) ListRooms(ctx context.Context, projectID string) ([]domain.Room, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,created_at FROM rooms WHERE project_id=? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.ProjectID, &room.Name, &room.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, room)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRoom(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM rooms WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- team members ---

func (r Repo) InsertMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO team_members(id,name,email,role,created_at) VALUES (?,?,?,?,?)`,
		m.ID, m.Name, m.Email, nullable(m.Role), m.CreatedAt)
	return err
}

func (r Repo) GetMember(ctx context.Context, id string) (domain.TeamMember, error) {
	var m domain.TeamMember
	var role sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM team_members WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.Email, &role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	m.Role = role.String
	return m, err
}

func (r Repo) ListMembers(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,email,COALESCE(role,''),created_at FROM team_members ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMember(ctx context.Context, m domain.TeamMember) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE team_members SET name=?, email=?, role=? WHERE id=?`,
		m.Name, m.Email, nullable(m.Role), m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMember(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM team_members WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- stages ---

const stageColumns = `id,room_id,phase,status,assignee_id,started_at,completed_at,due_date,created_at,updated_at`

func (r Repo) InsertStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages(`+stageColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.RoomID, phase.Canonical(s.Phase), s.Status, nullableStringPtr(s.AssigneeID),
		nullableStringPtr(s.StartedAt), nullableStringPtr(s.CompletedAt), nullableStringPtr(s.DueDate),
		s.CreatedAt, s.UpdatedAt)
	return err
}

func scanStage(scan func(dest ...any) error) (domain.Stage, error) {
	var s domain.Stage
	var assignee, startedAt, completedAt, dueDate sql.NullString
	err := scan(&s.ID, &s.RoomID, &s.Phase, &s.Status, &assignee, &startedAt, &completedAt, &dueDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	// Legacy rows may still carry the old rendering identifier.
	s.Phase = phase.Canonical(s.Phase)
	if assignee.Valid {
		s.AssigneeID = &assignee.String
	}
	if startedAt.Valid {
		s.StartedAt = &startedAt.String
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.String
	}
	if dueDate.Valid {
		s.DueDate = &dueDate.String
	}
	return s, nil
}

func (r Repo) GetStage(ctx context.Context, id string) (domain.Stage, error) {
	s, err := scanStage(r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetStageTx(ctx context.Context, tx *sql.Tx, id string) (domain.Stage, error) {
	s, err := scanStage(tx.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// ListStages returns a room's stages ordered by canonical phase position.
func (r Repo) ListStages(ctx context.Context, roomID string) ([]domain.Stage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE room_id=?`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortStages(res)
	return res, nil
}

func (r Repo) UpdateStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `UPDATE stages SET status=?, assignee_id=?, started_at=?, completed_at=?, due_date=?, updated_at=? WHERE id=?`,
		s.Status, nullableStringPtr(s.AssigneeID), nullableStringPtr(s.StartedAt), nullableStringPtr(s.CompletedAt),
		nullableStringPtr(s.DueDate), s.UpdatedAt, s.ID)
	return err
}

// ListStagesDueBetween returns stages with a due date inside [from, to],
// newest room first is irrelevant here so ordering is by due date.
func (r Repo) ListStagesDueBetween(ctx context.Context, from, to string) ([]domain.Stage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE due_date IS NOT NULL AND due_date >= ? AND due_date <= ? ORDER BY due_date ASC, id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func sortStages(stages []domain.Stage) {
	sort.Slice(stages, func(i, j int) bool {
		return phase.Index(stages[i].Phase) < phase.Index(stages[j].Phase)
	})
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
