package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/jeopardy/games/jeopardy"
)

type fakeSource struct {
	mu   sync.Mutex
	next int
	fail error
}

func (f *fakeSource) RandomCategoryID(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return 0, f.fail
	}
	f.next++
	return f.next, nil
}

func (f *fakeSource) Category(ctx context.Context, id int) (jeopardy.RawCategory, error) {
	clues := make([]jeopardy.RawClue, 0, 6)
	for i := 0; i < 6; i++ {
		v := (6 - i) * 200
		clues = append(clues, jeopardy.RawClue{
			Question: fmt.Sprintf("question %d-%d", id, i),
			Answer:   fmt.Sprintf("answer %d-%d", id, i),
			Value:    &v,
			AirDate:  "2004-06-01",
		})
	}

	return jeopardy.RawCategory{ID: id, Title: fmt.Sprintf("Category %d", id), Clues: clues}, nil
}

// stallingSource holds every category lookup until its context is cancelled
// while stall is set.
type stallingSource struct {
	fakeSource

	stall   atomic.Bool
	stalled chan struct{}
}

func (s *stallingSource) Category(ctx context.Context, id int) (jeopardy.RawCategory, error) {
	if s.stall.Load() {
		select {
		case s.stalled <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return jeopardy.RawCategory{}, ctx.Err()
	}

	return s.fakeSource.Category(ctx, id)
}

type testMessage struct {
	Type       string         `json:"type"`
	Loading    bool           `json:"loading"`
	Categories []CategoryView `json:"categories"`
	Category   int            `json:"category"`
	Clue       int            `json:"clue"`
	Cell       CellView       `json:"cell"`
	Message    string         `json:"message"`
}

func newTestConfig() *Config {
	return &Config{
		apiBurst:    1,
		apiURL:      "http://example.invalid",
		concurrency: 2,
		port:        8080,
	}
}

func newTestServer(t *testing.T, src jeopardy.Source) (*httptest.Server, *GameManager) {
	t.Helper()

	cfg := newTestConfig()
	errs := make(chan error, 64)
	gm := newGameManager(cfg, jeopardy.NewBuilder(src, 0, cfg.concurrency, nil))

	srv := httptest.NewServer(newRouter(cfg, gm, errs))
	t.Cleanup(func() {
		srv.Close()
		gm.closeAll()
	})

	return srv, gm
}

func dial(t *testing.T, srv *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + gamePath + "/" + gameID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func read(t *testing.T, conn *websocket.Conn) testMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg testMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func startBoard(t *testing.T, conn *websocket.Conn) testMessage {
	t.Helper()

	send(t, conn, ClientMessage{Type: "start"})

	if msg := read(t, conn); msg.Type != "board" || !msg.Loading {
		t.Fatalf("expected loading board, got %+v", msg)
	}

	msg := read(t, conn)
	if msg.Type != "board" || msg.Loading {
		t.Fatalf("expected finished board, got %+v", msg)
	}
	return msg
}

func TestGameStartAndReveal(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSource{})

	conn := dial(t, srv, "game1")

	if msg := read(t, conn); msg.Type != "board" || len(msg.Categories) != 0 {
		t.Fatalf("expected empty board on connect, got %+v", msg)
	}

	board := startBoard(t, conn)
	if len(board.Categories) != jeopardy.NumCategories {
		t.Fatalf("expected %d categories, got %d", jeopardy.NumCategories, len(board.Categories))
	}
	for i, cat := range board.Categories {
		if cat.Title != fmt.Sprintf("Category %d", i+1) {
			t.Fatalf("category %d: unexpected title %q", i, cat.Title)
		}
		if len(cat.Cells) != jeopardy.NumQuestionsPerCategory {
			t.Fatalf("category %d: expected %d cells, got %d", i, jeopardy.NumQuestionsPerCategory, len(cat.Cells))
		}
		for j, cell := range cat.Cells {
			if cell.State != jeopardy.Hidden || cell.Text != "" {
				t.Fatalf("cell %d/%d should be hidden without text: %+v", i, j, cell)
			}
			if j > 0 && cell.Value < cat.Cells[j-1].Value {
				t.Fatalf("category %d not sorted", i)
			}
		}
	}

	// the cheapest clue in fake category 1 is its last one
	send(t, conn, ClientMessage{Type: "activate", Category: 0, Clue: 0})
	msg := read(t, conn)
	if msg.Type != "reveal" || msg.Cell.State != jeopardy.Question || msg.Cell.Text != "question 1-5" {
		t.Fatalf("unexpected first reveal %+v", msg)
	}

	send(t, conn, ClientMessage{Type: "activate", Category: 0, Clue: 0})
	msg = read(t, conn)
	if msg.Type != "reveal" || msg.Cell.State != jeopardy.Answer || msg.Cell.Text != "answer 1-5" {
		t.Fatalf("unexpected second reveal %+v", msg)
	}

	// a third activation is a no-op, so the next message belongs to another cell
	send(t, conn, ClientMessage{Type: "activate", Category: 0, Clue: 0})
	send(t, conn, ClientMessage{Type: "activate", Category: 2, Clue: 4})
	msg = read(t, conn)
	if msg.Type != "reveal" || msg.Category != 2 || msg.Clue != 4 || msg.Cell.State != jeopardy.Question {
		t.Fatalf("unexpected reveal after no-op %+v", msg)
	}

	send(t, conn, ClientMessage{Type: "activate", Category: 9, Clue: 0})
	if msg := read(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for bad position, got %+v", msg)
	}
}

func TestGameBroadcastsToAllClients(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSource{})

	a := dial(t, srv, "shared")
	read(t, a)
	b := dial(t, srv, "shared")
	read(t, b)

	startBoard(t, a)
	if msg := read(t, b); !msg.Loading {
		t.Fatalf("second client should see loading, got %+v", msg)
	}
	if msg := read(t, b); len(msg.Categories) != jeopardy.NumCategories {
		t.Fatalf("second client should see the board, got %+v", msg)
	}

	send(t, b, ClientMessage{Type: "activate", Category: 1, Clue: 2})
	if msg := read(t, a); msg.Type != "reveal" || msg.Category != 1 || msg.Clue != 2 {
		t.Fatalf("first client should see the reveal, got %+v", msg)
	}
}

func TestGameBuildFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSource{fail: errors.New("jservice is down")})

	conn := dial(t, srv, "broken")
	read(t, conn)

	send(t, conn, ClientMessage{Type: "start"})
	if msg := read(t, conn); !msg.Loading {
		t.Fatalf("expected loading board, got %+v", msg)
	}
	if msg := read(t, conn); msg.Type != "error" {
		t.Fatalf("expected error, got %+v", msg)
	}
	msg := read(t, conn)
	if msg.Type != "board" || msg.Loading || len(msg.Categories) != 0 {
		t.Fatalf("expected empty idle board, got %+v", msg)
	}
}

func TestGameRestartDuringBuild(t *testing.T) {
	src := &stallingSource{stalled: make(chan struct{}, 1)}
	src.stall.Store(true)

	srv, _ := newTestServer(t, src)

	conn := dial(t, srv, "restart")
	read(t, conn)

	send(t, conn, ClientMessage{Type: "start"})
	if msg := read(t, conn); msg.Type != "board" || !msg.Loading {
		t.Fatalf("expected loading board, got %+v", msg)
	}

	select {
	case <-src.stalled:
	case <-time.After(5 * time.Second):
		t.Fatal("first build never reached the source")
	}
	src.stall.Store(false)

	board := startBoard(t, conn)
	if len(board.Categories) != jeopardy.NumCategories {
		t.Fatalf("expected restarted board with %d categories, got %+v", jeopardy.NumCategories, board)
	}
}

func TestBoardSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSource{})

	resp, err := http.Get(srv.URL + gamePath + "/nope/board")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d", resp.StatusCode)
	}

	conn := dial(t, srv, "snap")
	read(t, conn)
	startBoard(t, conn)

	send(t, conn, ClientMessage{Type: "activate", Category: 3, Clue: 1})
	read(t, conn)

	resp, err = http.Get(srv.URL + gamePath + "/snap/board")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var snap BoardMessage
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}

	revealed := 0
	for _, cat := range snap.Categories {
		for _, cell := range cat.Cells {
			if cell.State != jeopardy.Hidden {
				revealed++
			}
			if cell.State == jeopardy.Hidden && cell.Text != "" {
				t.Fatalf("hidden cell leaked text %q", cell.Text)
			}
		}
	}
	if revealed != 1 || snap.Categories[3].Cells[1].State != jeopardy.Question {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCellView(t *testing.T) {
	c := jeopardy.Clue{Question: "q", Answer: "a", Value: 400}

	if v := cellView(c); v.Text != "" || v.Value != 400 {
		t.Fatalf("hidden view: %+v", v)
	}
	c.Activate()
	if v := cellView(c); v.Text != "q" {
		t.Fatalf("question view: %+v", v)
	}
	c.Activate()
	if v := cellView(c); v.Text != "a" {
		t.Fatalf("answer view: %+v", v)
	}

	if got := boardView(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil board should render as empty list, got %#v", got)
	}
}

func TestReapIdleGames(t *testing.T) {
	cfg := newTestConfig()
	gm := newGameManager(cfg, jeopardy.NewBuilder(&fakeSource{}, 0, 1, nil))
	t.Cleanup(gm.closeAll)

	gm.getHub("old")
	if _, ok := gm.lookupHub("old"); !ok {
		t.Fatal("expected hub to exist")
	}

	gm.reap(time.Now().Add(-time.Hour))
	if _, ok := gm.lookupHub("old"); !ok {
		t.Fatal("recently active hub should survive")
	}

	gm.reap(time.Now().Add(time.Hour))
	if _, ok := gm.lookupHub("old"); ok {
		t.Fatal("idle hub should be reaped")
	}
}

func TestNewGameID(t *testing.T) {
	gm := newGameManager(newTestConfig(), nil)
	t.Cleanup(gm.closeAll)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := gm.newGameID()
		if len(id) != 8 {
			t.Fatalf("unexpected id length %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789", r) {
				t.Fatalf("unexpected rune in %q", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Fatalf("too many collisions: %d unique ids", len(seen))
	}
}
