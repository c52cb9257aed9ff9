// Jeopardy board sessions
//
// Each game ID owns one board. Any browser that opens /path/:gameid joins the
// same session and sees the same cells.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - "start" builds a fresh board in the background, replacing any previous one
// - "activate" moves one cell along hidden → question → answer
// - Cells are only sent with their text once they have been revealed
// - Activations are ignored while a board is loading
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode
// - JSON snapshot of the current board at /path/:gameid/board

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/jeopardy/games/jeopardy"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "start", "activate"
	Category int    `json:"category,omitempty"` // activate
	Clue     int    `json:"clue,omitempty"`     // activate
}

// CellView is a clue as clients are allowed to see it.
type CellView struct {
	Value int            `json:"value"`
	State jeopardy.State `json:"state"`
	Text  string         `json:"text,omitempty"`
}

type CategoryView struct {
	Title string     `json:"title"`
	Cells []CellView `json:"cells"`
}

// BoardMessage carries the whole board. Categories is empty before the first start.
type BoardMessage struct {
	Type       string         `json:"type"` // "board"
	Loading    bool           `json:"loading"`
	Categories []CategoryView `json:"categories"`
}

// RevealMessage updates a single cell after an activation.
type RevealMessage struct {
	Type     string   `json:"type"` // "reveal"
	Category int      `json:"category"`
	Clue     int      `json:"clue"`
	Cell     CellView `json:"cell"`
}

// SimpleMessage is for generic notifications such as errors.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func cellView(c jeopardy.Clue) CellView {
	v := CellView{Value: c.Value, State: c.State}

	switch c.State {
	case jeopardy.Question:
		v.Text = c.Question
	case jeopardy.Answer:
		v.Text = c.Answer
	}

	return v
}

func boardView(b *jeopardy.Board) []CategoryView {
	if b == nil {
		return []CategoryView{}
	}

	out := make([]CategoryView, 0, len(b.Categories))
	for _, cat := range b.Categories {
		cells := make([]CellView, 0, len(cat.Clues))
		for _, c := range cat.Clues {
			cells = append(cells, cellView(c))
		}
		out = append(out, CategoryView{Title: cat.Title, Cells: cells})
	}

	return out
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type startRequest struct {
	client *Client
}

type activateRequest struct {
	client *Client
	msg    ClientMessage
}

type buildResult struct {
	generation int
	board      *jeopardy.Board
	err        error
}

type Hub struct {
	id      string
	clients map[*Client]bool
	builder *jeopardy.Builder

	register    chan *Client
	unreg       chan *Client
	starts      chan startRequest
	activations chan activateRequest
	built       chan buildResult
	done        chan struct{}
	closeOnce   sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time

	board       *jeopardy.Board
	loading     bool
	generation  int
	cancelBuild context.CancelFunc
}

func newHub(gameID string, builder *jeopardy.Builder) *Hub {
	now := time.Now()
	return &Hub{
		id:          gameID,
		clients:     make(map[*Client]bool),
		builder:     builder,
		register:    make(chan *Client),
		unreg:       make(chan *Client),
		starts:      make(chan startRequest),
		activations: make(chan activateRequest),
		built:       make(chan buildResult),
		done:        make(chan struct{}),
		createdAt:   now,
		lastActive:  now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.sendLocked(c, h.boardMessageLocked())
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case sr := <-h.starts:
			h.handleStart(cfg, sr)

		case ar := <-h.activations:
			h.handleActivate(cfg, ar)

		case br := <-h.built:
			h.handleBuilt(cfg, br)

		case <-h.done:
			return
		}
	}
}

// sendLocked queues msg for one client, dropping the client if it has fallen behind.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) boardMessageLocked() BoardMessage {
	return BoardMessage{
		Type:       "board",
		Loading:    h.loading,
		Categories: boardView(h.board),
	}
}

// handleStart discards the current board and builds a new one, cancelling any
// build still in flight. The build runs outside the hub loop; its result comes
// back on h.built and is dropped unless it belongs to the latest generation.
func (h *Hub) handleStart(cfg *Config, _ startRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if h.cancelBuild != nil {
		logf(cfg, "GAMES: Abandoning board %d for %s", h.generation, h.id)
		h.cancelBuild()
		h.cancelBuild = nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	h.generation++
	h.board = nil
	h.loading = true
	h.cancelBuild = cancel

	logf(cfg, "GAMES: Building board %d for %s", h.generation, h.id)

	h.broadcastLocked(h.boardMessageLocked())

	go func(generation int) {
		startTime := time.Now()
		board, err := h.builder.Build(ctx)
		if err == nil {
			logf(cfg, "GAMES: Built board %d for %s in %s", generation, h.id, time.Since(startTime).Round(time.Millisecond))
		}

		select {
		case h.built <- buildResult{generation: generation, board: board, err: err}:
		case <-h.done:
		}
	}(h.generation)
}

func (h *Hub) handleBuilt(cfg *Config, br buildResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if br.generation != h.generation {
		return
	}

	h.lastActive = time.Now()
	h.loading = false
	if h.cancelBuild != nil {
		h.cancelBuild()
		h.cancelBuild = nil
	}

	if br.err != nil {
		errorf("building board for %s: %v", h.id, br.err)

		h.broadcastLocked(SimpleMessage{
			Type:    "error",
			Message: "Unable to load a new board. Please try again.",
		})
		h.broadcastLocked(h.boardMessageLocked())
		return
	}

	h.board = br.board
	h.broadcastLocked(h.boardMessageLocked())
}

func (h *Hub) handleActivate(cfg *Config, ar activateRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if h.loading || h.board == nil {
		return
	}

	msg := ar.msg

	clue, err := h.board.Clue(msg.Category, msg.Clue)
	if err != nil {
		h.sendLocked(ar.client, SimpleMessage{
			Type:    "error",
			Message: "That clue is not on the board.",
		})
		return
	}

	before := clue.State
	after := clue.Activate()
	if before == after {
		return
	}

	logf(cfg, "GAMES: %s revealed %s for category %d clue %d in %s", ar.client.playerID, after, msg.Category, msg.Clue, h.id)

	h.broadcastLocked(RevealMessage{
		Type:     "reveal",
		Category: msg.Category,
		Clue:     msg.Clue,
		Cell:     cellView(*clue),
	})
}

// snapshot returns the current board as clients see it.
func (h *Hub) snapshot() BoardMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.boardMessageLocked()
}

// closeAll stops the hub, cancels any build in flight and disconnects all clients.
func (h *Hub) closeAll() {
	h.closeOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelBuild != nil {
		h.cancelBuild()
		h.cancelBuild = nil
	}

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "jeopardy_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	builder     *jeopardy.Builder
	idleTimeout time.Duration
	cfg         *Config
	stop        chan struct{}
	stopOnce    sync.Once
}

func newGameManager(cfg *Config, builder *jeopardy.Builder) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		builder:     builder,
		idleTimeout: cfg.sessionTimeout,
		cfg:         cfg,
		stop:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.builder)
	gm.hubs[gameID] = hub
	go hub.run(gm.cfg)
	return hub
}

func (gm *GameManager) lookupHub(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < 8 {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= max && len(out) < 8 {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.stop:
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			logf(gm.cfg, "GAMES: Reaped idle game %s", id)
			delete(gm.hubs, id)
			go hub.closeAll()
		}
	}
}

// closeAll shuts down every hub and the reaper.
func (gm *GameManager) closeAll() {
	gm.stopOnce.Do(func() {
		close(gm.stop)
	})

	gm.mu.Lock()
	hubs := gm.hubs
	gm.hubs = make(map[string]*Hub)
	gm.mu.Unlock()

	for _, hub := range hubs {
		hub.closeAll()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade error: %v", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Player %s connected to %s from %s", playerID, gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start":
			select {
			case h.starts <- startRequest{client: c}:
			case <-h.done:
				return
			}
		case "activate":
			select {
			case h.activations <- activateRequest{client: c, msg: msg}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/jeopardy/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "missing client", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		cacheHeaders(w)
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// getBoardHandler returns the current board as JSON, with unrevealed text withheld.
func getBoardHandler(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := gm.lookupHub(ps.ByName("gameid"))
		if !ok {
			http.Error(w, "no such game", http.StatusNotFound)
			return
		}

		startTime := time.Now()

		body, err := json.Marshal(hub.snapshot())
		if err != nil {
			errs <- err
			http.Error(w, "unable to render board", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(body)
		if err != nil {
			errs <- err
			return
		}

		logf(cfg, "SERVE: Board for %s (%s) to %s in %s",
			ps.ByName("gameid"),
			formatSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
//   - $path/:gameid/board    → JSON snapshot of that game's board
func registerJeopardyGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	mux.GET(cfg.prefix+path+"/:gameid/board", getBoardHandler(cfg, gm, errs))
}
