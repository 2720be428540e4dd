package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/micro-nova/modcfg/internal/api"
	"github.com/micro-nova/modcfg/internal/config"
	"github.com/micro-nova/modcfg/internal/eeprom"
	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/protocol"
)

type testEnv struct {
	srv   *httptest.Server
	dev   *eeprom.Mem
	store *config.Store
	bus   *events.Bus
}

// newTestServer spins up a full router over an in-memory part holding a
// four byte configuration at base 8. Index 1 only accepts 0..10.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	dev := eeprom.NewMem(64)
	bus := events.NewBus()
	store, err := config.New(context.Background(), dev, 8, []byte{1, 2, 3, 4},
		config.WithValidator(config.NewRangeValidator(config.Rule{Index: 1, Min: 0, Max: 10})),
		config.WithChangeHandler(bus),
	)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	proto := protocol.New(store)

	srv := httptest.NewServer(api.NewRouter(store, proto, bus))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, dev: dev, store: store, bus: bus}
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// --- Tests ---

func TestGetConfig(t *testing.T) {
	env := newTestServer(t)

	resp := do(t, env.srv, "GET", "/api/config", "")
	requireStatus(t, resp, http.StatusOK)

	var cfg api.ConfigView
	decodeJSON(t, resp, &cfg)
	if cfg.Base != 8 || cfg.Size != 4 {
		t.Errorf("base/size = %d/%d, want 8/4", cfg.Base, cfg.Size)
	}
	want := []int{1, 2, 3, 4}
	for i, v := range want {
		if cfg.Bytes[i] != v {
			t.Errorf("bytes[%d] = %d, want %d", i, cfg.Bytes[i], v)
		}
	}
}

func TestGetInfoTrailingSlash(t *testing.T) {
	env := newTestServer(t)
	resp := do(t, env.srv, "GET", "/api/", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestGetByte(t *testing.T) {
	tests := []struct {
		path   string
		status int
		value  int
	}{
		{"/api/config/0", http.StatusOK, 1},
		{"/api/config/3", http.StatusOK, 4},
		{"/api/config/4", http.StatusNotFound, 0},
		{"/api/config/-1", http.StatusNotFound, 0},
		{"/api/config/abc", http.StatusBadRequest, 0},
	}
	env := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := do(t, env.srv, "GET", tt.path, "")
			requireStatus(t, resp, tt.status)
			if tt.status != http.StatusOK {
				resp.Body.Close()
				return
			}
			var b api.ByteView
			decodeJSON(t, resp, &b)
			if b.Value != tt.value {
				t.Errorf("value = %d, want %d", b.Value, tt.value)
			}
		})
	}
}

func TestSetByte(t *testing.T) {
	env := newTestServer(t)

	resp := do(t, env.srv, "PUT", "/api/config/2", `{"value":200}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if got := env.store.GetByte(2); got != 200 {
		t.Errorf("store[2] = %d, want 200", got)
	}
	b, err := env.dev.Read(context.Background(), 10)
	if err != nil {
		t.Fatalf("dev.Read: %v", err)
	}
	if b != 200 {
		t.Errorf("storage[10] = %d, want 200", b)
	}
}

func TestSetByte_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"rejected by validator", "/api/config/1", `{"value":11}`, http.StatusUnprocessableEntity, "REJECTED"},
		{"index out of range", "/api/config/9", `{"value":1}`, http.StatusNotFound, "NOT_FOUND"},
		{"value too large", "/api/config/0", `{"value":256}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"negative value", "/api/config/0", `{"value":-1}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing value", "/api/config/0", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid JSON", "/api/config/0", `{bad`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	env := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, env.srv, "PUT", tt.path, tt.body)
			requireStatus(t, resp, tt.status)
			var appErr api.AppError
			decodeJSON(t, resp, &appErr)
			if appErr.Code != tt.code {
				t.Errorf("error code = %q, want %q", appErr.Code, tt.code)
			}
		})
	}
	if got := env.store.Bytes(); string(got) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("store changed by failed writes: %v", got)
	}
}

func TestSetByte_PersistFailure(t *testing.T) {
	env := newTestServer(t)
	env.dev.SetFailWrite(true)

	resp := do(t, env.srv, "PUT", "/api/config/0", `{"value":7}`)
	requireStatus(t, resp, http.StatusInternalServerError)
	resp.Body.Close()

	// The in-memory commit stands.
	if got := env.store.GetByte(0); got != 7 {
		t.Errorf("store[0] = %d, want 7", got)
	}
}

func TestEraseLoadSave(t *testing.T) {
	env := newTestServer(t)

	resp := do(t, env.srv, "POST", "/api/config/erase", "")
	requireStatus(t, resp, http.StatusOK)
	var cfg api.ConfigView
	decodeJSON(t, resp, &cfg)
	for i, v := range cfg.Bytes {
		if v != 0xFF {
			t.Errorf("after erase bytes[%d] = %d, want 255", i, v)
		}
	}

	// Storage now differs from a fresh write; load brings it back into memory.
	if err := env.dev.Write(context.Background(), 8, 42); err != nil {
		t.Fatalf("dev.Write: %v", err)
	}
	resp = do(t, env.srv, "POST", "/api/config/load", "")
	requireStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &cfg)
	if cfg.Bytes[0] != 42 {
		t.Errorf("after load bytes[0] = %d, want 42", cfg.Bytes[0])
	}

	resp = do(t, env.srv, "POST", "/api/config/save", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestSave_StorageFailure(t *testing.T) {
	env := newTestServer(t)
	env.dev.SetFailWrite(true)

	resp := do(t, env.srv, "POST", "/api/config/save", "")
	requireStatus(t, resp, http.StatusInternalServerError)
	resp.Body.Close()
}

func TestInteract_RoundTrip(t *testing.T) {
	env := newTestServer(t)

	resp := do(t, env.srv, "POST", "/api/interact", `{"kind":"long","value":3}`)
	requireStatus(t, resp, http.StatusOK)
	var r api.InteractResponse
	decodeJSON(t, resp, &r)
	if r.Outcome != protocol.AddressAccepted {
		t.Fatalf("outcome = %v, want %v", r.Outcome, protocol.AddressAccepted)
	}
	if !r.Pending || r.Address == nil || *r.Address != 3 {
		t.Fatalf("pending = %+v, want address 3", r.PendingView)
	}

	resp = do(t, env.srv, "POST", "/api/interact", `{"kind":"short","value":99}`)
	requireStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &r)
	if r.Outcome != protocol.ValueCommitted {
		t.Fatalf("outcome = %v, want %v", r.Outcome, protocol.ValueCommitted)
	}
	if r.Pending {
		t.Error("address still pending after commit")
	}
	if got := env.store.GetByte(3); got != 99 {
		t.Errorf("store[3] = %d, want 99", got)
	}
}

func TestInteract_Outcomes(t *testing.T) {
	tests := []struct {
		body string
		want protocol.Outcome
	}{
		{`{"kind":"poll"}`, protocol.NoOp},
		{`{"kind":"short","value":5}`, protocol.NoPendingAddress},
		{`{"kind":"long","value":4}`, protocol.AddressRejected},
	}
	env := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			resp := do(t, env.srv, "POST", "/api/interact", tt.body)
			requireStatus(t, resp, http.StatusOK)
			var r api.InteractResponse
			decodeJSON(t, resp, &r)
			if r.Outcome != tt.want {
				t.Errorf("outcome = %v, want %v", r.Outcome, tt.want)
			}
		})
	}
}

func TestInteract_PersistFailurePublishes(t *testing.T) {
	env := newTestServer(t)
	ch := env.bus.Subscribe("test")
	defer env.bus.Unsubscribe("test")

	resp := do(t, env.srv, "POST", "/api/interact", `{"kind":"long","value":2}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	<-ch // address-accepted

	env.dev.SetFailWrite(true)
	resp = do(t, env.srv, "POST", "/api/interact", `{"kind":"short","value":50}`)
	requireStatus(t, resp, http.StatusInternalServerError)
	resp.Body.Close()

	// The change and the interaction are both published; the address is gone.
	var sawInteraction bool
	for len(ch) > 0 {
		n := <-ch
		if n.Type == events.TypeInteraction {
			sawInteraction = true
			if n.Outcome != protocol.ValueCommitted.String() {
				t.Errorf("interaction outcome = %q, want %q", n.Outcome, protocol.ValueCommitted.String())
			}
		}
	}
	if !sawInteraction {
		t.Error("no interaction notification after a persistence failure")
	}
	if got := env.store.GetByte(2); got != 50 {
		t.Errorf("store[2] = %d, want 50", got)
	}

	resp = do(t, env.srv, "GET", "/api/interact", "")
	requireStatus(t, resp, http.StatusOK)
	var p api.PendingView
	decodeJSON(t, resp, &p)
	if p.Pending {
		t.Error("address still pending after a committed short press")
	}
}

func TestInteract_BadKind(t *testing.T) {
	env := newTestServer(t)
	resp := do(t, env.srv, "POST", "/api/interact", `{"kind":"twist","value":1}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestGetPending(t *testing.T) {
	env := newTestServer(t)

	resp := do(t, env.srv, "GET", "/api/interact", "")
	requireStatus(t, resp, http.StatusOK)
	var p api.PendingView
	decodeJSON(t, resp, &p)
	if p.Pending {
		t.Error("fresh protocol reports a pending address")
	}
	if p.TimeoutMs != protocol.DefaultTimeout.Milliseconds() {
		t.Errorf("timeout_ms = %d, want %d", p.TimeoutMs, protocol.DefaultTimeout.Milliseconds())
	}
}

func TestNotFound(t *testing.T) {
	env := newTestServer(t)
	resp := do(t, env.srv, "GET", "/api/nonexistent", "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestSetByte_PublishesChange(t *testing.T) {
	env := newTestServer(t)
	ch := env.bus.Subscribe("test")
	defer env.bus.Unsubscribe("test")

	resp := do(t, env.srv, "PUT", "/api/config/0", `{"value":9}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	select {
	case n := <-ch:
		if n.Type != events.TypeChange || n.Index != 0 || n.Value != 9 {
			t.Errorf("notification = %+v, want change of byte 0 to 9", n)
		}
	default:
		t.Fatal("no notification published")
	}
}

func TestSSESubscribe(t *testing.T) {
	env := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/subscribe", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// The first event is the current configuration.
	scanner := bufio.NewScanner(resp.Body)
	name, data := nextEvent(t, scanner)
	if name != api.EventSnapshot {
		t.Errorf("first SSE event = %q, want %q", name, api.EventSnapshot)
	}
	var cfg api.ConfigView
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Errorf("SSE data is not valid config JSON: %v", err)
	}
	if cfg.Size != 4 {
		t.Errorf("SSE config size = %d, want 4", cfg.Size)
	}

	// Later events are named after their notification type.
	put := do(t, env.srv, "PUT", "/api/config/0", `{"value":9}`)
	requireStatus(t, put, http.StatusOK)
	put.Body.Close()

	name, data = nextEvent(t, scanner)
	if name != events.TypeChange {
		t.Errorf("SSE event after a write = %q, want %q", name, events.TypeChange)
	}
	var n events.Notification
	if err := json.Unmarshal(data, &n); err != nil || n.Index != 0 || n.Value != 9 {
		t.Errorf("SSE change = %+v (err %v), want byte 0 = 9", n, err)
	}
}

// nextEvent reads one SSE frame and returns its event name and data.
func nextEvent(t *testing.T, scanner *bufio.Scanner) (string, []byte) {
	t.Helper()
	name := ""
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			name = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			return name, []byte(v)
		}
	}
	t.Fatalf("SSE stream ended without a data line: %v", scanner.Err())
	return "", nil
}
