// Package host serves a session over websockets so a remote UI can play the
// human seat. Every change is pushed to every client as a snapshot.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
)

// Session is the surface the host serves.
type Session interface {
	State() combat.State
	Permissions() combat.Permissions
	LastDecision() (policy.Decision, bool)
	Events() []scheduler.Event
	Subscribe() (<-chan struct{}, func())
	Act(action combat.Action, amount int) error
	Ready() error
	Mulligan(indexes []int) error
	NextHand() error
}

type Host struct {
	session  Session
	clock    quartz.Clock
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(s Session, clock quartz.Clock, logger *log.Logger) *Host {
	return &Host{
		session: s,
		clock:   clock,
		logger:  logger.WithPrefix("host"),
		upgrader: websocket.Upgrader{
			// The host is meant for a local UI.
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler serves /ws, /state and /health.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/state", h.handleState)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// Run broadcasts a snapshot after every session change until ctx is done,
// then disconnects every client.
func (h *Host) Run(ctx context.Context) error {
	changes, unsubscribe := h.session.Subscribe()
	defer unsubscribe()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			h.broadcast()
		}
	}
}

// ListenAndServe serves Handler on addr and runs the broadcaster until ctx is
// done.
func (h *Host) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("Starting websocket host", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	go func() { _ = h.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (h *Host) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := newClient(h, conn)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Client connected", "total", total)

	if msg, err := h.snapshotMessage(); err == nil {
		c.enqueue(msg)
	}
	c.start()

	go func() {
		<-c.ctx.Done()
		h.mu.Lock()
		delete(h.clients, c)
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Info("Client disconnected", "total", total)
	}()
}

func (h *Host) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.snapshot()); err != nil {
		h.logger.Warn("Failed to write state", "error", err)
	}
}

func (h *Host) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (h *Host) snapshot() SnapshotData {
	d, ok := h.session.LastDecision()
	return snapshot(h.session.State(), h.session.Permissions(), d, ok, h.session.Events())
}

func (h *Host) snapshotMessage() (*Message, error) {
	return newMessage(MessageTypeSnapshot, h.snapshot(), h.clock.Now())
}

func (h *Host) broadcast() {
	msg, err := h.snapshotMessage()
	if err != nil {
		h.logger.Error("Failed to build snapshot", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(msg)
	}
}

func (h *Host) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Host) act(data ActionData) error {
	action, err := combat.ParseAction(data.Action)
	if err != nil {
		return err
	}
	return h.session.Act(action, data.Amount)
}
