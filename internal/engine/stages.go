package engine

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/domain"
	"atelier/internal/events"
	"atelier/internal/notify"
	"atelier/internal/phase"
	"atelier/internal/repo"
)

// Action is the closed set of stage mutations. Every submission carries
// exactly one.
type Action string

const (
	ActionStart             Action = "start"
	ActionComplete          Action = "complete"
	ActionReopen            Action = "reopen"
	ActionMarkNotApplicable Action = "mark_not_applicable"
	ActionMarkApplicable    Action = "mark_applicable"
	ActionAssign            Action = "assign"
	ActionSetDueDate        Action = "set_due_date"
)

// ActionOptions parameterizes one stage action. MemberID applies to assign
// (nil clears), DueDate to set_due_date (nil clears), NotifyConfirmed to
// complete (overrides the engine's Confirm callback when set).
type ActionOptions struct {
	StageID         string
	Action          Action
	MemberID        *string
	DueDate         *string
	NotifyConfirmed *bool
	ActorID         string
}

// ActionResult carries the mutated stage plus a fresh read of the whole
// room, so callers never render from stale in-memory state. Notifications
// is populated only by complete.
type ActionResult struct {
	Stage         domain.Stage   `json:"stage"`
	Room          domain.Room    `json:"room"`
	Stages        []domain.Stage `json:"stages"`
	Notifications notify.Outcome `json:"notifications"`
}

// ErrActionInFlight is returned when a stage already has an action running.
var ErrActionInFlight = errors.New("another action is already in flight for this stage")

// ApplyAction runs one stage mutation. An empty stage id is a silent
// no-op: the source treats "no stage selected" as nothing to do, not an
// error, and callers depend on that.
func (e Engine) ApplyAction(ctx context.Context, opts ActionOptions) (ActionResult, error) {
	if opts.StageID == "" {
		return ActionResult{}, nil
	}
	if !e.guard.acquire(opts.StageID) {
		return ActionResult{}, ErrActionInFlight
	}
	defer e.guard.release(opts.StageID)

	switch opts.Action {
	case ActionStart, ActionReopen, ActionMarkNotApplicable, ActionMarkApplicable:
		return e.setStatus(ctx, opts)
	case ActionComplete:
		return e.completeStage(ctx, opts)
	case ActionAssign:
		return e.assignStage(ctx, opts)
	case ActionSetDueDate:
		return e.setDueDate(ctx, opts)
	default:
		return ActionResult{}, fmt.Errorf("unknown stage action %q", opts.Action)
	}
}

// ensureStageAction validates an action against the stage's current status
// and returns the status it lands on. Validation is per action, not per
// target status: start and reopen both land on in_progress, but start only
// leaves pending and reopen only leaves complete.
func ensureStageAction(action Action, oldStatus string) (string, error) {
	switch action {
	case ActionStart:
		if oldStatus == "pending" {
			return "in_progress", nil
		}
	case ActionReopen:
		if oldStatus == "complete" {
			return "in_progress", nil
		}
	case ActionComplete:
		if oldStatus == "pending" || oldStatus == "in_progress" {
			return "complete", nil
		}
	case ActionMarkNotApplicable:
		if oldStatus == "pending" || oldStatus == "in_progress" {
			return "not_applicable", nil
		}
	case ActionMarkApplicable:
		if oldStatus == "not_applicable" {
			return "pending", nil
		}
	}
	return "", fmt.Errorf("invalid stage status transition: cannot %s from %s", action, oldStatus)
}

func (e Engine) setStatus(ctx context.Context, opts ActionOptions) (ActionResult, error) {
	s, err := e.Repo.GetStage(ctx, opts.StageID)
	if err != nil {
		return ActionResult{}, err
	}
	old := s.Status
	newStatus, err := ensureStageAction(opts.Action, old)
	if err != nil {
		return ActionResult{}, err
	}
	now := e.nowRFC3339()
	s.Status = newStatus
	s.UpdatedAt = now
	switch {
	case opts.Action == ActionStart:
		s.StartedAt = &now
	case opts.Action == ActionReopen:
		s.CompletedAt = nil
	}
	if err := e.writeStage(ctx, s, old, opts.ActorID); err != nil {
		return ActionResult{}, err
	}
	return e.actionResult(ctx, s.ID)
}

func (e Engine) assignStage(ctx context.Context, opts ActionOptions) (ActionResult, error) {
	s, err := e.Repo.GetStage(ctx, opts.StageID)
	if err != nil {
		return ActionResult{}, err
	}
	if opts.MemberID != nil && *opts.MemberID != "" {
		if _, err := e.Repo.GetMember(ctx, *opts.MemberID); err != nil {
			return ActionResult{}, err
		}
		s.AssigneeID = opts.MemberID
	} else {
		s.AssigneeID = nil
	}
	s.UpdatedAt = e.nowRFC3339()
	if err := e.writeStage(ctx, s, s.Status, opts.ActorID); err != nil {
		return ActionResult{}, err
	}
	return e.actionResult(ctx, s.ID)
}

func (e Engine) setDueDate(ctx context.Context, opts ActionOptions) (ActionResult, error) {
	s, err := e.Repo.GetStage(ctx, opts.StageID)
	if err != nil {
		return ActionResult{}, err
	}
	if opts.DueDate != nil && *opts.DueDate != "" {
		s.DueDate = opts.DueDate
	} else {
		s.DueDate = nil
	}
	s.UpdatedAt = e.nowRFC3339()
	if err := e.writeStage(ctx, s, s.Status, opts.ActorID); err != nil {
		return ActionResult{}, err
	}
	return e.actionResult(ctx, s.ID)
}

func (e Engine) writeStage(ctx context.Context, s domain.Stage, fromStatus, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateStage(ctx, tx, s); err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "stage.updated", "stage", s.ID, actorID, events.EventPayload{
		"room_id":     s.RoomID,
		"phase":       s.Phase,
		"from_status": fromStatus,
		"to_status":   s.Status,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) actionResult(ctx context.Context, stageID string) (ActionResult, error) {
	s, err := e.Repo.GetStage(ctx, stageID)
	if err != nil {
		return ActionResult{}, err
	}
	state, err := e.RoomState(ctx, s.RoomID)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Stage: s, Room: state.Room, Stages: state.Stages}, nil
}

// completeStage marks the stage complete and, on success, notifies the
// assignees of the downstream phases. Candidates without an assignee are
// dropped silently; a failed completion sends nothing; notification
// failures never unwind the completion.
func (e Engine) completeStage(ctx context.Context, opts ActionOptions) (ActionResult, error) {
	s, err := e.Repo.GetStage(ctx, opts.StageID)
	if err != nil {
		return ActionResult{}, err
	}
	if _, err := ensureStageAction(ActionComplete, s.Status); err != nil {
		return ActionResult{}, err
	}
	room, err := e.Repo.GetRoom(ctx, s.RoomID)
	if err != nil {
		return ActionResult{}, err
	}
	stages, err := e.Repo.ListStages(ctx, s.RoomID)
	if err != nil {
		return ActionResult{}, err
	}

	batch, err := e.notifyBatch(ctx, s, room, stages)
	if err != nil {
		return ActionResult{}, err
	}
	confirmed := true
	if len(batch) > 0 {
		if opts.NotifyConfirmed != nil {
			confirmed = *opts.NotifyConfirmed
		} else if e.Confirm != nil {
			confirmed = e.Confirm(notify.ConfirmPrompt(phase.Label(s.Phase), batch))
		}
	}

	old := s.Status
	now := e.nowRFC3339()
	s.Status = "complete"
	s.CompletedAt = &now
	s.UpdatedAt = now
	if err := e.writeStage(ctx, s, old, opts.ActorID); err != nil {
		return ActionResult{}, err
	}

	var outcome notify.Outcome
	if confirmed && len(batch) > 0 && e.Mailer != nil {
		outcome = notify.Dispatch(ctx, e.Mailer, batch, nil)
	}

	res, err := e.actionResult(ctx, s.ID)
	if err != nil {
		return ActionResult{}, err
	}
	res.Notifications = outcome
	return res, nil
}

// notifyBatch resolves the downstream phases of the completed stage to
// concrete notifications: one per downstream stage that has an assignee.
// Dangling assignee references are skipped like missing assignees.
func (e Engine) notifyBatch(ctx context.Context, completed domain.Stage, room domain.Room, stages []domain.Stage) ([]notify.Notification, error) {
	byPhase := map[string]domain.Stage{}
	for _, st := range stages {
		byPhase[st.Phase] = st
	}
	var batch []notify.Notification
	for _, kind := range phase.Next(completed.Phase) {
		next, ok := byPhase[kind]
		if !ok || next.AssigneeID == nil {
			continue
		}
		member, err := e.Repo.GetMember(ctx, *next.AssigneeID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		batch = append(batch, notify.Notification{
			StageID:        next.ID,
			RoomID:         room.ID,
			RoomName:       room.Name,
			Phase:          next.Phase,
			PhaseLabel:     phase.Label(next.Phase),
			CompletedPhase: completed.Phase,
			AssigneeID:     member.ID,
			AssigneeName:   member.Name,
			AssigneeEmail:  member.Email,
		})
	}
	return batch, nil
}

// BulkAssign sets one assignee on every stage of a room in a single tx.
// The guard key covers the whole room so it cannot interleave with
// per-stage actions submitted at the same moment from this process.
func (e Engine) BulkAssign(ctx context.Context, roomID string, memberID *string, actorID string) (RoomState, error) {
	key := "bulk-assign:" + roomID
	if !e.guard.acquire(key) {
		return RoomState{}, ErrActionInFlight
	}
	defer e.guard.release(key)

	if _, err := e.Repo.GetRoom(ctx, roomID); err != nil {
		return RoomState{}, err
	}
	if memberID != nil && *memberID != "" {
		if _, err := e.Repo.GetMember(ctx, *memberID); err != nil {
			return RoomState{}, err
		}
	} else {
		memberID = nil
	}
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return RoomState{}, err
	}
	defer tx.Rollback()
	var assignee any
	if memberID != nil {
		assignee = *memberID
	}
	if _, err := tx.ExecContext(ctx, `UPDATE stages SET assignee_id=?, updated_at=? WHERE room_id=?`, assignee, now, roomID); err != nil {
		return RoomState{}, fmt.Errorf("bulk assign: %w", err)
	}
	payload := events.EventPayload{"room_id": roomID}
	if memberID != nil {
		payload["member_id"] = *memberID
	}
	if err := e.Events.Append(ctx, tx, "room.assigned", "room", roomID, actorID, payload); err != nil {
		return RoomState{}, err
	}
	if err := tx.Commit(); err != nil {
		return RoomState{}, err
	}
	return e.RoomState(ctx, roomID)
}
