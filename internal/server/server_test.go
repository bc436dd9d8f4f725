package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/internal/identity"
	"github.com/park285/dama-table/internal/metrics"
	"github.com/park285/dama-table/internal/preview"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/internal/table"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testSecret = "test-secret"

type harness struct {
	ts       *httptest.Server
	store    *store.MemoryStore
	registry *table.Registry
}

func newHarness(t *testing.T, tables ...string) *harness {
	t.Helper()
	st := store.NewMemoryStore()
	for _, id := range tables {
		if err := st.Create(context.Background(), id, domain.DefaultSnapshot()); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	v, err := identity.NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	reg := table.NewRegistry(st, table.WithMetrics(m))
	srv := New(Config{Registry: reg, Store: st, Verifier: v, Metrics: m, Preview: preview.NewRenderer(24)})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &harness{ts: ts, store: st, registry: reg}
}

func token(t *testing.T, id, name string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": id, "username": name, "isGuest": false}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (h *harness) dial(t *testing.T, tableID, tok string) *websocket.Conn {
	t.Helper()
	q := url.Values{}
	if tableID != "" {
		q.Set("table", tableID)
	}
	if tok != "" {
		q.Set("token", tok)
	}
	u := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws?" + q.Encode()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func read(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var m map[string]any
	if err := wsjson.Read(ctx, c, &m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func expect(t *testing.T, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	m := read(t, c)
	if m["type"] != typ {
		t.Fatalf("got frame %v, want type %s", m, typ)
	}
	return m
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c, v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (h *harness) status(t *testing.T, id string) (domain.Status, error) {
	t.Helper()
	return h.store.Status(context.Background(), id)
}

func TestTwoPlayerGame(t *testing.T) {
	h := newHarness(t, "T1")

	a := h.dial(t, "T1", token(t, "u1", "Alice"))
	info := expect(t, a, "playerInfo")
	if info["playerColor"] != float64(0) || info["username"] != "Alice" {
		t.Fatalf("A playerInfo = %v", info)
	}
	gs := expect(t, a, "gameState")
	if gs["firstTurnMove"] != true || gs["firstMovedPiece"] != nil {
		t.Fatalf("default gameState = %v", gs)
	}

	b := h.dial(t, "T1", token(t, "u2", "Bob"))
	info = expect(t, b, "playerInfo")
	if info["playerColor"] != float64(1) || info["username"] != "Bob" {
		t.Fatalf("B playerInfo = %v", info)
	}
	expect(t, b, "gameState")
	if m := expect(t, b, "gameStart"); m["opponentName"] != "Alice" {
		t.Fatalf("B gameStart = %v", m)
	}
	expect(t, b, "gameState")
	if m := expect(t, a, "gameStart"); m["opponentName"] != "Bob" {
		t.Fatalf("A gameStart = %v", m)
	}
	expect(t, a, "gameState")

	if s, _ := h.status(t, "T1"); s != domain.StatusPlaying {
		t.Fatalf("status = %s", s)
	}

	pieces := make([]map[string]any, 12)
	for i := range pieces {
		pieces[i] = map[string]any{"id": i, "col": 1}
	}
	send(t, a, map[string]any{"type": "move", "pieceList": pieces, "turn": 3})

	for name, c := range map[string]*websocket.Conn{"A": a, "B": b} {
		st := expect(t, c, "gameState")
		if st["turn"] != float64(3) || len(st["pieceList"].([]any)) != 12 {
			t.Fatalf("%s gameState = %v", name, st)
		}
		end := expect(t, c, "gameEnd")
		if end["winner"] != float64(1) || end["winnerColor"] != "Beyaz" {
			t.Fatalf("%s gameEnd = %v", name, end)
		}
	}
	waitFor(t, "finished status", func() bool {
		s, _ := h.status(t, "T1")
		return s == domain.StatusFinished
	})

	if err := a.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close A: %v", err)
	}
	expect(t, b, "opponentDisconnected")
	waitFor(t, "open status", func() bool {
		s, _ := h.status(t, "T1")
		return s == domain.StatusOpen
	})

	if err := b.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close B: %v", err)
	}
	waitFor(t, "table deletion", func() bool {
		_, err := h.status(t, "T1")
		return errors.Is(err, store.ErrNotFound) && h.registry.Len() == 0
	})
}

func expectRejection(t *testing.T, c *websocket.Conn, message string) {
	t.Helper()
	m := expect(t, c, "error")
	if m["message"] != message {
		t.Fatalf("error message = %v, want %q", m["message"], message)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestAdmissionRejections(t *testing.T) {
	h := newHarness(t, "T1")

	t.Run("missing token", func(t *testing.T) {
		expectRejection(t, h.dial(t, "T1", ""), "Token gerekli!")
	})
	t.Run("bad token", func(t *testing.T) {
		expectRejection(t, h.dial(t, "T1", "garbage"), "Geçersiz token!")
	})
	t.Run("unknown table", func(t *testing.T) {
		expectRejection(t, h.dial(t, "nope", token(t, "u1", "Alice")), "Geçersiz masa!")
	})
	t.Run("third player", func(t *testing.T) {
		a := h.dial(t, "T1", token(t, "u1", "Alice"))
		expect(t, a, "playerInfo")
		b := h.dial(t, "T1", token(t, "u2", "Bob"))
		expect(t, b, "playerInfo")
		expectRejection(t, h.dial(t, "T1", token(t, "u3", "Carol")), "Masa dolu veya oyun bitti!")
	})
}

func TestFinishedTableRejected(t *testing.T) {
	h := newHarness(t, "T1")
	if err := h.store.SetStatus(context.Background(), "T1", domain.StatusFinished); err != nil {
		t.Fatal(err)
	}
	expectRejection(t, h.dial(t, "T1", token(t, "u1", "Alice")), "Masa dolu veya oyun bitti!")
	if h.registry.Len() != 0 {
		t.Fatalf("rejected admission left a room behind")
	}
}

type brokenStatusStore struct {
	*store.MemoryStore
}

func (b brokenStatusStore) Status(context.Context, string) (domain.Status, error) {
	return "", errors.New("connection refused")
}

func TestStoreFailureRejectsAdmission(t *testing.T) {
	mem := store.NewMemoryStore()
	if err := mem.Create(context.Background(), "T1", domain.DefaultSnapshot()); err != nil {
		t.Fatal(err)
	}
	st := brokenStatusStore{mem}
	v, err := identity.NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	reg := table.NewRegistry(st, table.WithMetrics(m))
	ts := httptest.NewServer(New(Config{Registry: reg, Store: st, Verifier: v, Metrics: m}).Router())
	defer ts.Close()
	h := &harness{ts: ts, store: mem, registry: reg}

	expectRejection(t, h.dial(t, "T1", token(t, "u1", "Alice")), "Veritabanı hatası!")
	if reg.Len() != 0 {
		t.Fatalf("store failure left a room behind")
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		fmt.Sprintf(`dama_admissions_total{result=%q} 1`, StoreUnavailable),
		`dama_store_errors_total{op="status"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestBearerHeaderToken(t *testing.T) {
	h := newHarness(t, "T1")
	u := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws?table=T1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token(t, "u1", "Alice"))
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.CloseNow()
	if m := expect(t, c, "playerInfo"); m["username"] != "Alice" {
		t.Fatalf("playerInfo = %v", m)
	}
}

func TestBadFramesAreDropped(t *testing.T) {
	h := newHarness(t, "T1")
	a := h.dial(t, "T1", token(t, "u1", "Alice"))
	expect(t, a, "playerInfo")
	expect(t, a, "gameState")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	send(t, a, map[string]any{"type": "chat", "text": "hi"})
	send(t, a, map[string]any{"type": "move", "pieceList": "oops"})
	send(t, a, map[string]any{"type": "initBoard", "pieceList": []any{map[string]any{"col": 0}}, "turn": 1})

	m := expect(t, a, "initBoard")
	if m["turn"] != float64(1) || len(m["pieceList"].([]any)) != 1 {
		t.Fatalf("initBoard = %v", m)
	}
	grid := m["positionArray"].([]any)
	if len(grid) != 8 || grid[3].([]any)[3] != float64(-1) {
		t.Fatalf("positionArray not defaulted: %v", grid)
	}
}

func TestHTTPRoutes(t *testing.T) {
	h := newHarness(t, "T1")

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Get(h.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	resp, body := get("/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}

	resp, _ = get("/tables/T1/board.png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("board.png = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	resp, _ = get("/tables/missing/board.png")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing board = %d", resp.StatusCode)
	}

	// one rejected admission so the counter has a series
	expectRejection(t, h.dial(t, "T1", ""), "Token gerekli!")
	resp, body = get("/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, fmt.Sprintf(`dama_admissions_total{result=%q}`, MissingCredential)) {
		t.Fatalf("metrics = %d\n%s", resp.StatusCode, body)
	}
}
