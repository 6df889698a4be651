package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/domain"
	"atelier/internal/engine"
	"atelier/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v1"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func seedRoom(t *testing.T, srv *testServer) (projectID, roomID string) {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/clients", map[string]any{"name": "Harbor Holdings"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var c domain.Client
	_ = json.Unmarshal(data, &c)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"client_id": c.ID,
		"name":      "Harbor Loft",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var p domain.Project
	_ = json.Unmarshal(data, &p)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+p.ID+"/rooms", map[string]any{"name": "Living Room"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create room: %d %s", res.StatusCode, string(data))
	}
	var room RoomResponse
	_ = json.Unmarshal(data, &room)
	return p.ID, room.ID
}

func TestRoomLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, roomID := seedRoom(t, srv)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/rooms/"+roomID+"/phases", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("phases: %d %s", res.StatusCode, string(data))
	}
	var stages []StageResponse
	if err := json.Unmarshal(data, &stages); err != nil {
		t.Fatalf("unmarshal stages: %v", err)
	}
	if len(stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(stages))
	}
	if stages[0].Phase != "concept" || stages[4].Phase != "ffe" {
		t.Fatalf("unexpected order: %s..%s", stages[0].Phase, stages[4].Phase)
	}

	// start and complete the first phase through the action endpoint
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/rooms/"+roomID+"/stages/"+stages[0].ID+"/actions", map[string]any{
		"action": "start",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/rooms/"+roomID+"/stages/"+stages[0].ID+"/actions", map[string]any{
		"action": "complete",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", res.StatusCode, string(data))
	}
	var action StageActionResponse
	if err := json.Unmarshal(data, &action); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	if action.Stage.Status != "complete" {
		t.Fatalf("expected complete, got %s", action.Stage.Status)
	}
	if len(action.Room.Stages) != 5 {
		t.Fatalf("expected full room refetch, got %d stages", len(action.Room.Stages))
	}

	// a second complete is an invalid transition -> conflict envelope
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/rooms/"+roomID+"/stages/"+stages[0].ID+"/actions", map[string]any{
		"action": "complete",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q (%s)", envelope.Error.Code, string(data))
	}
}

func TestStageNotInRoom(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, roomID := seedRoom(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/rooms/other-room/stages/missing/actions", map[string]any{
		"action": "start",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	_ = roomID
}

func TestBulkAssignEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	_, roomID := seedRoom(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/members", map[string]any{
		"name":  "Mara",
		"email": "mara@studio.test",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create member: %d %s", res.StatusCode, string(data))
	}
	var m domain.TeamMember
	_ = json.Unmarshal(data, &m)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/rooms/"+roomID+"/assignments", map[string]any{
		"member_id": m.ID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bulk assign: %d %s", res.StatusCode, string(data))
	}
	var room RoomResponse
	if err := json.Unmarshal(data, &room); err != nil {
		t.Fatalf("unmarshal room: %v", err)
	}
	for _, s := range room.Stages {
		if s.AssigneeID == nil || *s.AssigneeID != m.ID {
			t.Fatalf("stage %s unassigned", s.Phase)
		}
	}
}

func TestActorAttribution(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/clients", map[string]any{"name": "Named Actor Co"}, map[string]string{
		"X-Actor-Id": "mara",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var actor string
	if err := srv.Engine.DB.QueryRowContext(context.Background(), `SELECT actor_id FROM events ORDER BY id DESC LIMIT 1`).Scan(&actor); err != nil {
		t.Fatalf("query actor: %v", err)
	}
	if actor != "mara" {
		t.Fatalf("expected mara, got %q", actor)
	}

	// without the header the default actor is recorded
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/clients", map[string]any{"name": "Anonymous Co"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	if err := srv.Engine.DB.QueryRowContext(context.Background(), `SELECT actor_id FROM events ORDER BY id DESC LIMIT 1`).Scan(&actor); err != nil {
		t.Fatalf("query actor: %v", err)
	}
	if actor != "studio-user" {
		t.Fatalf("expected studio-user, got %q", actor)
	}
}

func TestProposalTotalsInResponse(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	projectID, _ := seedRoom(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+projectID+"/proposals", map[string]any{
		"title":            "Phase One",
		"tax_rate_bp":      825,
		"design_fee_cents": 150000,
		"items": []map[string]any{
			{"description": "Sofa", "unit_price_cents": 100000, "quantity": 2, "taxable": true},
			{"description": "Consulting", "unit_price_cents": 50000, "quantity": 1, "taxable": false},
		},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create proposal: %d %s", res.StatusCode, string(data))
	}
	var p struct {
		ID     string `json:"id"`
		Totals struct {
			SubtotalCents   int64 `json:"subtotal_cents"`
			TaxCents        int64 `json:"tax_cents"`
			GrandTotalCents int64 `json:"grand_total_cents"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal proposal: %v", err)
	}
	if p.Totals.SubtotalCents != 250000 {
		t.Fatalf("subtotal = %d", p.Totals.SubtotalCents)
	}
	if p.Totals.TaxCents != 16500 {
		t.Fatalf("tax = %d", p.Totals.TaxCents)
	}
	if p.Totals.GrandTotalCents != 416500 {
		t.Fatalf("grand total = %d", p.Totals.GrandTotalCents)
	}
}

func TestInvoiceStatusFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	projectID, _ := seedRoom(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+projectID+"/invoices", map[string]any{
		"amount_due_cents": 100000,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create invoice: %d %s", res.StatusCode, string(data))
	}
	var inv domain.Invoice
	_ = json.Unmarshal(data, &inv)
	if inv.Status != "draft" || inv.Number == "" {
		t.Fatalf("unexpected invoice %+v", inv)
	}

	for _, status := range []string{"sent", "paid"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/invoices/"+inv.ID+"/status", map[string]any{"status": status}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("set %s: %d %s", status, res.StatusCode, string(data))
		}
	}
	// paid invoices cannot be voided
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/invoices/"+inv.ID+"/status", map[string]any{"status": "void"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}
