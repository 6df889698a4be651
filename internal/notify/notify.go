// Package notify dispatches completion emails to downstream assignees
// through an HTTP mail gateway. Delivery is best effort: the gateway only
// acknowledges dispatch, and individual failures never unwind the phase
// completion that triggered them.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Notification asks the gateway to email one stage's assignee that their
// phase is up next.
type Notification struct {
	StageID        string `json:"stage_id"`
	RoomID         string `json:"room_id"`
	RoomName       string `json:"room_name"`
	Phase          string `json:"phase"`
	PhaseLabel     string `json:"phase_label"`
	CompletedPhase string `json:"completed_phase"`
	AssigneeID     string `json:"assignee_id"`
	AssigneeName   string `json:"assignee_name"`
	AssigneeEmail  string `json:"assignee_email"`
}

// Sender sends a single notification. A nil error means the gateway
// accepted the dispatch, not that the mail was delivered.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// ConfirmFunc is asked once per completion before any emails go out.
// It replaces the source UI's blocking dialog so callers (CLI, server,
// tests) decide how to answer.
type ConfirmFunc func(prompt string) bool

// Outcome counts how one batch of notifications fared.
type Outcome struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Partial reports a mixed result: some sent, some not.
func (o Outcome) Partial() bool {
	return o.Sent > 0 && o.Failed > 0
}

func (o Outcome) String() string {
	if o.Sent == 0 && o.Failed == 0 {
		return "no notifications"
	}
	return fmt.Sprintf("%d sent, %d failed", o.Sent, o.Failed)
}

// ConfirmPrompt names the just-completed phase and the people about to be
// emailed, one prompt per completion regardless of fan-out.
func ConfirmPrompt(completedPhaseLabel string, batch []Notification) string {
	seen := map[string]bool{}
	var names []string
	for _, n := range batch {
		name := n.AssigneeName
		if name == "" {
			name = n.AssigneeEmail
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return fmt.Sprintf("%s is complete. Email %s about the next phase?", completedPhaseLabel, strings.Join(names, ", "))
}

// Dispatch sends every notification in parallel and waits for all of them.
// Failures are counted, logged, and otherwise ignored.
func Dispatch(ctx context.Context, s Sender, batch []Notification, logger *zap.Logger) Outcome {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		outcome Outcome
	)
	for _, n := range batch {
		wg.Add(1)
		go func(n Notification) {
			defer wg.Done()
			err := s.Send(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failed++
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", n.PhaseLabel, err))
				logger.Warn("notification failed",
					zap.String("stage_id", n.StageID),
					zap.String("phase", n.Phase),
					zap.String("assignee", n.AssigneeEmail),
					zap.Error(err),
				)
				return
			}
			outcome.Sent++
		}(n)
	}
	wg.Wait()
	return outcome
}
