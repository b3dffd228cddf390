package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quillen/chatrelay/config"
	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/pagination"
	"github.com/quillen/chatrelay/server"
	"github.com/quillen/chatrelay/telemetry"
	"github.com/quillen/chatrelay/testutil"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	db.RegisterKinds()
	os.Exit(m.Run())
}

// fakeStore implements server.Store on top of testutil.MemoryStore.
type fakeStore struct {
	messages *testutil.MemoryStore[db.ChatMessage]
	commands *testutil.MemoryStore[db.Command]
	pingErr  error
	deleted  map[string]bool

	tokenAccess string
	tokenExpiry time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: &testutil.MemoryStore[db.ChatMessage]{},
		commands: &testutil.MemoryStore[db.Command]{},
		deleted:  map[string]bool{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) Messages(string) pagination.QueryFunc[db.ChatMessage] {
	return f.messages.Query
}

func (f *fakeStore) Commands(string) pagination.QueryFunc[db.Command] {
	return f.commands.Query
}

func (f *fakeStore) UpsertCommand(_ context.Context, c *db.Command) error {
	c.ID = primitive.NewObjectID()
	f.commands.Items = append(f.commands.Items, *c)
	return nil
}

func (f *fakeStore) DeleteCommand(_ context.Context, _, name string) error {
	if f.deleted[name] {
		return db.ErrNotFound
	}
	f.deleted[name] = true
	return nil
}

func (f *fakeStore) UpsertOAuthToken(_ context.Context, _, access, _ string, expiry time.Time, _ string) error {
	f.tokenAccess, f.tokenExpiry = access, expiry
	return nil
}

func (f *fakeStore) GetOAuthToken(context.Context, string) (string, string, time.Time, string, error) {
	return f.tokenAccess, "", f.tokenExpiry, "", nil
}

func testConfig() *config.Config {
	return &config.Config{
		TwitchChannel:   "testchan",
		CommandPrefix:   "!",
		DefaultPageSize: 3,
		MaxPageSize:     10,
		HTTPAddr:        ":0",
	}
}

// seedMessages adds n whole-second messages so cursor values stay
// lexicographically ordered in the memory store.
func seedMessages(store *fakeStore, n int) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		store.messages.Items = append(store.messages.Items, db.ChatMessage{
			ID:       primitive.NewObjectID(),
			Channel:  "testchan",
			Username: fmt.Sprintf("user-%02d", i),
			Message:  fmt.Sprintf("msg-%02d", i),
			SentAt:   base.Add(time.Duration(i) * time.Second),
		})
	}
}

type connResponse[T any] struct {
	Edges []struct {
		Cursor string `json:"cursor"`
		Node   T      `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		StartCursor     string `json:"startCursor"`
		EndCursor       string `json:"endCursor"`
		HasNextPage     bool   `json:"hasNextPage"`
		HasPreviousPage bool   `json:"hasPreviousPage"`
	} `json:"pageInfo"`
}

func newTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(server.NewMux(ctx, store, testConfig()))
	t.Cleanup(srv.Close)
	return srv
}

func getConn[T any](t *testing.T, url string) (*connResponse[T], int) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	var conn connResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&conn); err != nil {
		t.Fatalf("decode connection: %v", err)
	}
	return &conn, resp.StatusCode
}

func TestMessagesConnectionForwardWalk(t *testing.T) {
	store := newFakeStore()
	seedMessages(store, 5)
	srv := newTestServer(t, store)

	conn, status := getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages?first=2")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(conn.Edges) != 2 || !conn.PageInfo.HasNextPage || conn.PageInfo.HasPreviousPage {
		t.Fatalf("first page: %d edges, pageInfo %+v", len(conn.Edges), conn.PageInfo)
	}
	if conn.Edges[0].Node.Message != "msg-00" || conn.Edges[1].Node.Message != "msg-01" {
		t.Errorf("page order: %s, %s", conn.Edges[0].Node.Message, conn.Edges[1].Node.Message)
	}
	if conn.PageInfo.StartCursor != conn.Edges[0].Cursor || conn.PageInfo.EndCursor != conn.Edges[1].Cursor {
		t.Error("pageInfo cursors do not frame the edges")
	}

	conn, status = getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages?first=10&after="+conn.PageInfo.EndCursor)
	if status != http.StatusOK {
		t.Fatalf("second page status = %d", status)
	}
	if len(conn.Edges) != 3 || conn.PageInfo.HasNextPage || !conn.PageInfo.HasPreviousPage {
		t.Fatalf("second page: %d edges, pageInfo %+v", len(conn.Edges), conn.PageInfo)
	}
	if conn.Edges[0].Node.Message != "msg-02" {
		t.Errorf("second page starts at %s", conn.Edges[0].Node.Message)
	}
}

func TestMessagesConnectionBackward(t *testing.T) {
	store := newFakeStore()
	seedMessages(store, 5)
	srv := newTestServer(t, store)

	// Grab the last message's cursor, then page backward from it.
	conn, _ := getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages?first=5")
	lastCursor := conn.PageInfo.EndCursor

	conn, status := getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages?last=2&before="+lastCursor)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(conn.Edges) != 2 {
		t.Fatalf("backward page: %d edges", len(conn.Edges))
	}
	// Natural order restored: msg-02 then msg-03.
	if conn.Edges[0].Node.Message != "msg-02" || conn.Edges[1].Node.Message != "msg-03" {
		t.Errorf("backward page order: %s, %s", conn.Edges[0].Node.Message, conn.Edges[1].Node.Message)
	}
	if !conn.PageInfo.HasPreviousPage || !conn.PageInfo.HasNextPage {
		t.Errorf("pageInfo %+v", conn.PageInfo)
	}
}

func TestMessagesConnectionDefaultsFirst(t *testing.T) {
	store := newFakeStore()
	seedMessages(store, 5)
	srv := newTestServer(t, store)

	conn, status := getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(conn.Edges) != 3 {
		t.Errorf("default page size: %d edges, want 3", len(conn.Edges))
	}
}

func TestMessagesConnectionClampsFirst(t *testing.T) {
	store := newFakeStore()
	seedMessages(store, 15)
	srv := newTestServer(t, store)

	conn, status := getConn[db.ChatMessage](t, srv.URL+"/channels/testchan/messages?first=5000")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(conn.Edges) != 10 {
		t.Errorf("clamped page: %d edges, want max 10", len(conn.Edges))
	}
}

func TestConnectionRejectsBadArguments(t *testing.T) {
	store := newFakeStore()
	seedMessages(store, 3)
	srv := newTestServer(t, store)

	for _, q := range []string{
		"?first=-1",
		"?first=2&last=2",
		"?last=2&after=abc",
		"?after=%21%21not-a-cursor",
	} {
		resp, err := http.Get(srv.URL + "/channels/testchan/messages" + q)
		if err != nil {
			t.Fatalf("GET %s: %v", q, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestConnectionStoreFailureIs500(t *testing.T) {
	store := newFakeStore()
	store.messages.Err = errors.New("mongo down")
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/channels/testchan/messages?first=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCommandsConnectionOrderedByName(t *testing.T) {
	store := newFakeStore()
	for _, name := range []string{"uptime", "discord", "lurk"} {
		store.commands.Items = append(store.commands.Items, db.Command{
			ID: primitive.NewObjectID(), Channel: "testchan", Name: name, Response: "r",
		})
	}
	srv := newTestServer(t, store)

	conn, status := getConn[db.Command](t, srv.URL+"/channels/testchan/commands?first=10")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(conn.Edges) != 3 {
		t.Fatalf("%d edges", len(conn.Edges))
	}
	want := []string{"discord", "lurk", "uptime"}
	for i, w := range want {
		if conn.Edges[i].Node.Name != w {
			t.Errorf("edge %d = %s, want %s", i, conn.Edges[i].Node.Name, w)
		}
	}
}

func TestEmptyConnectionHasEmptyEdges(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/channels/testchan/messages?first=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Edges must serialize as [], not null.
	if string(raw["edges"]) != "[]" {
		t.Errorf("edges = %s, want []", raw["edges"])
	}
}

func TestAdminUpsertAndDeleteCommand(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	body, _ := json.Marshal(map[string]any{
		"channel": "testchan", "name": "lurk", "response": "enjoy the lurk",
	})
	resp, err := http.Post(srv.URL+"/admin/commands", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d", resp.StatusCode)
	}
	if len(store.commands.Items) != 1 {
		t.Fatalf("stored %d commands", len(store.commands.Items))
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/admin/commands/testchan/lurk", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminUpsertValidatesBody(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	resp, err := http.Post(srv.URL+"/admin/commands", "application/json", bytes.NewReader([]byte(`{"channel":"c"}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminAuthToken(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "sekrit")
	store := newFakeStore()
	srv := newTestServer(t, store)

	body := []byte(`{"channel":"c","name":"n","response":"r"}`)
	resp, err := http.Post(srv.URL+"/admin/commands", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/admin/commands", bytes.NewReader(body))
	req.Header.Set("X-Admin-Token", "sekrit")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authed status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthy status = %d", resp.StatusCode)
	}

	store.pingErr = errors.New("no reachable servers")
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", resp.StatusCode)
	}
}

func TestReadyzRequiresCredentials(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	// No static token, no stored token: not ready.
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	store.tokenAccess = "stored-token"
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestOAuthStartUnconfigured(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/auth/twitch/start")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with corr: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Correlation-ID"); got != "corr-42" {
		t.Errorf("corr header = %q, want corr-42", got)
	}
}
