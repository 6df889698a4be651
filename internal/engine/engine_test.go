package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/domain"
	"atelier/internal/engine"
	"atelier/internal/migrate"
	"atelier/internal/notify"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail map[string]bool
}

func (m *recordingMailer) Send(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	if m.fail[n.Phase] {
		return errors.New("gateway unreachable")
	}
	return nil
}

func (m *recordingMailer) phases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.sent {
		out = append(out, n.Phase)
	}
	return out
}

type testEnv struct {
	Engine    engine.Engine
	Mailer    *recordingMailer
	Ctx       context.Context
	ProjectID string
	RoomID    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	mailer := &recordingMailer{fail: map[string]bool{}}
	eng.Mailer = mailer

	ctx := context.Background()
	client, err := eng.CreateClient(ctx, domain.Client{Name: "Harbor Holdings"}, "tester")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	project, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{ClientID: client.ID, Name: "Harbor Loft", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	room, err := eng.CreateRoom(ctx, project.ID, "Living Room", "tester")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return &testEnv{Engine: eng, Mailer: mailer, Ctx: ctx, ProjectID: project.ID, RoomID: room.Room.ID}
}

func (env *testEnv) member(t *testing.T, name, email string) domain.TeamMember {
	t.Helper()
	m, err := env.Engine.CreateMember(env.Ctx, domain.TeamMember{Name: name, Email: email}, "tester")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func (env *testEnv) stage(t *testing.T, kind string) domain.Stage {
	t.Helper()
	state, err := env.Engine.RoomState(env.Ctx, env.RoomID)
	if err != nil {
		t.Fatalf("room state: %v", err)
	}
	for _, s := range state.Stages {
		if s.Phase == kind {
			return s
		}
	}
	t.Fatalf("no stage for phase %s", kind)
	return domain.Stage{}
}

func (env *testEnv) assign(t *testing.T, kind, memberID string) {
	t.Helper()
	s := env.stage(t, kind)
	if _, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: s.ID, Action: engine.ActionAssign, MemberID: &memberID, ActorID: "tester",
	}); err != nil {
		t.Fatalf("assign %s: %v", kind, err)
	}
}

func (env *testEnv) complete(t *testing.T, kind string) engine.ActionResult {
	t.Helper()
	s := env.stage(t, kind)
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: s.ID, Action: engine.ActionComplete, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("complete %s: %v", kind, err)
	}
	return res
}

func TestRoomPreProvisionsStages(t *testing.T) {
	env := newTestEnv(t)
	state, err := env.Engine.RoomState(env.Ctx, env.RoomID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"concept", "three_d", "client_approval", "drawings", "ffe"}
	if len(state.Stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(state.Stages))
	}
	for i, s := range state.Stages {
		if s.Phase != want[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, want[i], s.Phase)
		}
		if s.Status != "pending" {
			t.Fatalf("stage %s: expected pending, got %s", s.Phase, s.Status)
		}
	}
}

func TestStageStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "concept")
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionStart, ActorID: "tester"})
	if err != nil || res.Stage.Status != "in_progress" {
		t.Fatalf("start: %v (%+v)", err, res.Stage)
	}
	if res.Stage.StartedAt == nil {
		t.Fatalf("expected started_at stamped")
	}
	res = env.complete(t, "concept")
	if res.Stage.Status != "complete" || res.Stage.CompletedAt == nil {
		t.Fatalf("complete: %+v", res.Stage)
	}
	// complete stage cannot be started again, only reopened
	_, err = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionStart, ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected transition error")
	}
	after := env.stage(t, "concept")
	if after.Status != "complete" || after.CompletedAt == nil {
		t.Fatalf("rejected start must leave the stage untouched: %+v", after)
	}
	// reopen clears completed_at
	res, err = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionReopen, ActorID: "tester"})
	if err != nil || res.Stage.Status != "in_progress" || res.Stage.CompletedAt != nil {
		t.Fatalf("reopen: %v (%+v)", err, res.Stage)
	}
}

func TestReopenOnlyLeavesComplete(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "concept")
	if _, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionReopen, ActorID: "tester"}); err == nil {
		t.Fatalf("expected transition error for reopen on pending")
	}
	if _, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionStart, ActorID: "tester"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionReopen, ActorID: "tester"}); err == nil {
		t.Fatalf("expected transition error for reopen on in_progress")
	}
}

func TestNotApplicableRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "ffe")
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionMarkNotApplicable, ActorID: "tester"})
	if err != nil || res.Stage.Status != "not_applicable" {
		t.Fatalf("mark n/a: %v", err)
	}
	res, err = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionMarkApplicable, ActorID: "tester"})
	if err != nil || res.Stage.Status != "pending" {
		t.Fatalf("mark applicable: %v", err)
	}
	// completed stages cannot be excluded
	env.complete(t, "concept")
	c := env.stage(t, "concept")
	_, err = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: c.ID, Action: engine.ActionMarkNotApplicable, ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected transition error for complete -> not_applicable")
	}
}

func TestEmptyStageIDIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: "", Action: engine.ActionComplete, ActorID: "tester"})
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if res.Stage.ID != "" || len(res.Stages) != 0 {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if len(env.Mailer.sent) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestCompleteNotifiesNextAssignee(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "three_d", mara.ID)

	res := env.complete(t, "concept")
	if res.Notifications.Sent != 1 || res.Notifications.Failed != 0 {
		t.Fatalf("unexpected outcome %+v", res.Notifications)
	}
	phases := env.Mailer.phases()
	if len(phases) != 1 || phases[0] != "three_d" {
		t.Fatalf("expected three_d notification, got %v", phases)
	}
	if env.Mailer.sent[0].AssigneeEmail != "mara@studio.test" {
		t.Fatalf("wrong recipient %+v", env.Mailer.sent[0])
	}
}

func TestCompleteWithoutAssigneesSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	prompts := 0
	env.Engine.Confirm = func(string) bool { prompts++; return true }
	res := env.complete(t, "concept")
	if res.Stage.Status != "complete" {
		t.Fatalf("expected completion")
	}
	if res.Notifications.Sent != 0 || res.Notifications.Failed != 0 {
		t.Fatalf("unexpected outcome %+v", res.Notifications)
	}
	if prompts != 0 {
		t.Fatalf("expected no confirm prompt")
	}
}

func TestClientApprovalFansOut(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	jonas := env.member(t, "Jonas", "jonas@studio.test")
	env.assign(t, "drawings", mara.ID)
	env.assign(t, "ffe", jonas.ID)
	env.complete(t, "concept")
	env.complete(t, "three_d")

	res := env.complete(t, "client_approval")
	if res.Notifications.Sent != 2 {
		t.Fatalf("expected 2 sent, got %+v", res.Notifications)
	}
	got := map[string]bool{}
	for _, p := range env.Mailer.phases() {
		got[p] = true
	}
	if !got["drawings"] || !got["ffe"] {
		t.Fatalf("expected drawings and ffe, got %v", env.Mailer.phases())
	}
}

func TestFanOutFiltersUnassigned(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "ffe", mara.ID)
	env.complete(t, "concept")
	env.complete(t, "three_d")

	res := env.complete(t, "client_approval")
	if res.Notifications.Sent != 1 {
		t.Fatalf("expected 1 sent, got %+v", res.Notifications)
	}
	if phases := env.Mailer.phases(); len(phases) != 1 || phases[0] != "ffe" {
		t.Fatalf("expected only ffe, got %v", phases)
	}
}

func TestTerminalPhaseNotifiesNobody(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	for _, kind := range []string{"concept", "three_d", "client_approval", "drawings", "ffe"} {
		env.assign(t, kind, mara.ID)
	}
	env.complete(t, "concept")
	env.complete(t, "three_d")
	env.complete(t, "client_approval")
	env.complete(t, "drawings")
	env.Mailer.sent = nil

	res := env.complete(t, "ffe")
	if res.Notifications.Sent != 0 || len(env.Mailer.sent) != 0 {
		t.Fatalf("terminal phase should notify nobody: %+v", res.Notifications)
	}
}

func TestPartialFailureCountsIndependently(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	jonas := env.member(t, "Jonas", "jonas@studio.test")
	env.assign(t, "drawings", mara.ID)
	env.assign(t, "ffe", jonas.ID)
	env.Mailer.fail["ffe"] = true
	env.complete(t, "concept")
	env.complete(t, "three_d")

	res := env.complete(t, "client_approval")
	if res.Notifications.Sent != 1 || res.Notifications.Failed != 1 {
		t.Fatalf("expected 1 sent, 1 failed; got %+v", res.Notifications)
	}
	if res.Notifications.String() != "1 sent, 1 failed" {
		t.Fatalf("unexpected summary %q", res.Notifications.String())
	}
	// completion itself stands
	if env.stage(t, "client_approval").Status != "complete" {
		t.Fatalf("partial failure must not unwind the completion")
	}
}

func TestDeclinedConfirmStillCompletes(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "three_d", mara.ID)
	declined := false
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: env.stage(t, "concept").ID, Action: engine.ActionComplete,
		NotifyConfirmed: &declined, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Stage.Status != "complete" {
		t.Fatalf("decline must not block the completion")
	}
	if len(env.Mailer.sent) != 0 {
		t.Fatalf("declined confirm must send nothing")
	}
}

func TestConfirmPromptNamesAssignees(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "three_d", mara.ID)
	var prompt string
	env.Engine.Confirm = func(p string) bool { prompt = p; return true }
	env.complete(t, "concept")
	if prompt == "" {
		t.Fatalf("expected a confirm prompt")
	}
	if want := "Design Concept is complete. Email Mara about the next phase?"; prompt != want {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestFailedMutationSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "three_d", mara.ID)
	env.complete(t, "concept")
	env.Mailer.sent = nil

	// a second complete is an invalid transition; nothing may go out
	_, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: env.stage(t, "concept").ID, Action: engine.ActionComplete, ActorID: "tester",
	})
	if err == nil {
		t.Fatalf("expected transition error")
	}
	if len(env.Mailer.sent) != 0 {
		t.Fatalf("failed mutation must send nothing")
	}
}

func TestLegacyRenderingAliasReadsAsThreeD(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "three_d")
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE stages SET phase='rendering' WHERE id=?`, s.ID); err != nil {
		t.Fatalf("rewrite phase: %v", err)
	}
	mara := env.member(t, "Mara", "mara@studio.test")
	env.assign(t, "three_d", mara.ID)

	res := env.complete(t, "concept")
	if res.Notifications.Sent != 1 {
		t.Fatalf("legacy alias row must still be found downstream: %+v", res.Notifications)
	}
	if env.stage(t, "three_d").Phase != "three_d" {
		t.Fatalf("legacy phase should read back normalized")
	}
}

func TestBulkAssign(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	state, err := env.Engine.BulkAssign(env.Ctx, env.RoomID, &mara.ID, "tester")
	if err != nil {
		t.Fatalf("bulk assign: %v", err)
	}
	for _, s := range state.Stages {
		if s.AssigneeID == nil || *s.AssigneeID != mara.ID {
			t.Fatalf("stage %s not assigned", s.Phase)
		}
	}
	// clearing
	state, err = env.Engine.BulkAssign(env.Ctx, env.RoomID, nil, "tester")
	if err != nil {
		t.Fatalf("bulk clear: %v", err)
	}
	for _, s := range state.Stages {
		if s.AssigneeID != nil {
			t.Fatalf("stage %s still assigned", s.Phase)
		}
	}
}

func TestSetDueDate(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "drawings")
	due := "2026-04-15"
	res, err := env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: s.ID, Action: engine.ActionSetDueDate, DueDate: &due, ActorID: "tester",
	})
	if err != nil || res.Stage.DueDate == nil || *res.Stage.DueDate != due {
		t.Fatalf("set due date: %v (%+v)", err, res.Stage)
	}
	res, err = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{
		StageID: s.ID, Action: engine.ActionSetDueDate, ActorID: "tester",
	})
	if err != nil || res.Stage.DueDate != nil {
		t.Fatalf("clear due date: %v (%+v)", err, res.Stage)
	}
}

// Walks a room front to back: assignees on every phase, each completion
// notifying the next, the approval fan-out in the middle, silence at the end.
func TestRoomWalkthrough(t *testing.T) {
	env := newTestEnv(t)
	mara := env.member(t, "Mara", "mara@studio.test")
	jonas := env.member(t, "Jonas", "jonas@studio.test")
	env.assign(t, "concept", mara.ID)
	env.assign(t, "three_d", mara.ID)
	env.assign(t, "client_approval", mara.ID)
	env.assign(t, "drawings", jonas.ID)
	env.assign(t, "ffe", jonas.ID)

	if res := env.complete(t, "concept"); res.Notifications.Sent != 1 {
		t.Fatalf("concept: %+v", res.Notifications)
	}
	if res := env.complete(t, "three_d"); res.Notifications.Sent != 1 {
		t.Fatalf("three_d: %+v", res.Notifications)
	}
	if res := env.complete(t, "client_approval"); res.Notifications.Sent != 2 {
		t.Fatalf("client_approval: %+v", res.Notifications)
	}
	// ffe is still open and assigned, so completing drawings mails Jonas
	if res := env.complete(t, "drawings"); res.Notifications.Sent != 1 {
		t.Fatalf("drawings: %+v", res.Notifications)
	}
	if res := env.complete(t, "ffe"); res.Notifications.Sent != 0 {
		t.Fatalf("ffe: %+v", res.Notifications)
	}
	state, err := env.Engine.RoomState(env.Ctx, env.RoomID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range state.Stages {
		if s.Status != "complete" {
			t.Fatalf("stage %s not complete", s.Phase)
		}
	}
	// five completions logged
	var count int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM events WHERE type='stage.updated' AND json_extract(payload_json,'$.to_status')='complete'`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 completion events, got %d", count)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	s := env.stage(t, "concept")
	_, _ = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionStart, ActorID: "tester"})
	_, _ = env.Engine.ApplyAction(env.Ctx, engine.ActionOptions{StageID: s.ID, Action: engine.ActionComplete, ActorID: "tester"})
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE entity_id=?`, s.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count < 2 {
		t.Fatalf("expected events per mutation, got %d", count)
	}
}

func TestMemberCreateRecordsEventWithRow(t *testing.T) {
	env := newTestEnv(t)
	m := env.member(t, "Jonas Berg", "jonas@example.com")
	var events int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM events WHERE entity_kind='member' AND entity_id=?`, m.ID).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one member.created event, got %d", events)
	}
}

func TestProductWritesShareTransactionWithEvents(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProduct(env.Ctx, domain.Product{
		RoomID: env.RoomID, Name: "Walnut Sideboard", UnitPriceCents: 120000, Quantity: 1,
	}, "tester")
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if p.Status != "proposed" {
		t.Fatalf("new product status %q", p.Status)
	}
	if _, err := env.Engine.SetProductStatus(env.Ctx, p.ID, "approved", "tester"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// a duplicate id must roll back without leaving a stray event
	if _, err := env.Engine.CreateProduct(env.Ctx, domain.Product{
		ID: p.ID, RoomID: env.RoomID, Name: "Duplicate", UnitPriceCents: 100, Quantity: 1,
	}, "tester"); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	var events int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM events WHERE entity_kind='product' AND entity_id=?`, p.ID).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 2 {
		t.Fatalf("expected create and status events only, got %d", events)
	}
	got, err := env.Engine.Repo.GetProduct(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Status != "approved" || got.Name != "Walnut Sideboard" {
		t.Fatalf("unexpected product after rollback: %+v", got)
	}
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.CreateInvoice(env.Ctx, engine.InvoiceCreateOptions{
		ProjectID: env.ProjectID, AmountDueCents: 250000, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	second, err := env.Engine.CreateInvoice(env.Ctx, engine.InvoiceCreateOptions{
		ProjectID: env.ProjectID, AmountDueCents: 90000, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if first.Number != "INV-0001" || second.Number != "INV-0002" {
		t.Fatalf("numbers %q, %q", first.Number, second.Number)
	}
}
