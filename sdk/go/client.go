package ateliersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Atelier HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Room represents the API room model with its phases.
type Room struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Name      string  `json:"name"`
	CreatedAt string  `json:"created_at"`
	Stages    []Stage `json:"stages,omitempty"`
}

// Stage is one phase of a room.
type Stage struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	Phase       string  `json:"phase"`
	PhaseLabel  string  `json:"phase_label"`
	Status      string  `json:"status"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// NotificationOutcome reports how a completion's emails went.
type NotificationOutcome struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Summary string   `json:"summary"`
	Errors  []string `json:"errors,omitempty"`
}

// ActionResult is the post-action view of the stage and its room.
type ActionResult struct {
	Stage         Stage               `json:"stage"`
	Room          Room                `json:"room"`
	Notifications NotificationOutcome `json:"notifications"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateRoom creates a room with its phases pre-provisioned.
func (c *Client) CreateRoom(ctx context.Context, projectID, name string) (Room, error) {
	body := map[string]any{"name": name}
	var resp Room
	endpoint := fmt.Sprintf("v1/projects/%s/rooms", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetRoom fetches a room and its phases.
func (c *Client) GetRoom(ctx context.Context, roomID string) (Room, error) {
	var resp Room
	endpoint := fmt.Sprintf("v1/rooms/%s", url.PathEscape(roomID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ApplyAction submits a stage action (start, complete, reopen,
// mark_not_applicable, mark_applicable, assign, set_due_date).
func (c *Client) ApplyAction(ctx context.Context, roomID, stageID, action string, opts map[string]any) (ActionResult, error) {
	body := map[string]any{"action": action}
	for k, v := range opts {
		body[k] = v
	}
	var resp ActionResult
	endpoint := fmt.Sprintf("v1/rooms/%s/stages/%s/actions", url.PathEscape(roomID), url.PathEscape(stageID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CompleteStage completes a phase. notifyConfirmed nil leaves the decision
// to the server's default, which sends.
func (c *Client) CompleteStage(ctx context.Context, roomID, stageID string, notifyConfirmed *bool) (ActionResult, error) {
	opts := map[string]any{}
	if notifyConfirmed != nil {
		opts["notify_confirmed"] = *notifyConfirmed
	}
	return c.ApplyAction(ctx, roomID, stageID, "complete", opts)
}

// BulkAssign assigns every stage of a room to one member. A nil member
// clears the assignments.
func (c *Client) BulkAssign(ctx context.Context, roomID string, memberID *string) (Room, error) {
	body := map[string]any{"member_id": memberID}
	var resp Room
	endpoint := fmt.Sprintf("v1/rooms/%s/assignments", url.PathEscape(roomID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
