// Package observer implements the ClosureObserver transport:
// an in-process fan-out hub, plus an optional WebSocket broadcaster so a GUI
// or dashboard process can watch decisions and results live.
package observer

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// Observer is the ClosureObserver interface: a sink for every
// decision the evaluator makes and every result the executor produces.
type Observer interface {
	OnDecision(model.ClosureDecision)
	OnResult(model.ClosureResult)
}

// Hub fans out decisions and results to any number of subscriber channels.
// An event for a full subscriber channel is dropped (the subscriber stays
// registered) rather than blocking the publisher —
// the orchestrator's tick loop must never stall on a slow observer.
type Hub struct {
	mu          sync.Mutex
	decisionSub []chan model.ClosureDecision
	resultSub   []chan model.ClosureResult
	log         *zap.Logger
}

// NewHub builds an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: log}
}

// SubscribeDecisions registers a new channel of the given buffer size and
// returns it.
func (h *Hub) SubscribeDecisions(buffer int) <-chan model.ClosureDecision {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.ClosureDecision, buffer)
	h.decisionSub = append(h.decisionSub, ch)
	return ch
}

// SubscribeResults registers a new channel of the given buffer size and
// returns it.
func (h *Hub) SubscribeResults(buffer int) <-chan model.ClosureResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.ClosureResult, buffer)
	h.resultSub = append(h.resultSub, ch)
	return ch
}

// OnDecision implements Observer.
func (h *Hub) OnDecision(d model.ClosureDecision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.decisionSub {
		select {
		case ch <- d:
		default:
			if h.log != nil {
				h.log.Warn("dropping closure decision, subscriber channel full", zap.String("decisionId", d.ID))
			}
		}
	}
}

// OnResult implements Observer.
func (h *Hub) OnResult(r model.ClosureResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.resultSub {
		select {
		case ch <- r:
		default:
			if h.log != nil {
				h.log.Warn("dropping closure result, subscriber channel full", zap.String("decisionId", r.DecisionID))
			}
		}
	}
}

// event is the JSON envelope pushed over the websocket.
type event struct {
	Type     string                 `json:"type"`
	Decision *model.ClosureDecision `json:"decision,omitempty"`
	Result   *model.ClosureResult   `json:"result,omitempty"`
}

// WebSocketBroadcaster upgrades incoming HTTP connections to WebSocket and
// streams every Hub event to them as JSON frames.
type WebSocketBroadcaster struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWebSocketBroadcaster wires a broadcaster to hub and starts forwarding
// immediately; call ServeHTTP from an http.Handler to accept dashboard
// connections.
func NewWebSocketBroadcaster(hub *Hub, log *zap.Logger) *WebSocketBroadcaster {
	b := &WebSocketBroadcaster{
		hub:      hub,
		log:      log,
		conns:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	decisions := hub.SubscribeDecisions(64)
	results := hub.SubscribeResults(64)
	go b.forward(decisions, results)
	return b
}

func (b *WebSocketBroadcaster) forward(decisions <-chan model.ClosureDecision, results <-chan model.ClosureResult) {
	for {
		select {
		case d, ok := <-decisions:
			if !ok {
				return
			}
			b.broadcast(event{Type: "decision", Decision: &d})
		case r, ok := <-results:
			if !ok {
				return
			}
			b.broadcast(event{Type: "result", Result: &r})
		}
	}
}

func (b *WebSocketBroadcaster) broadcast(e event) {
	payload, err := json.Marshal(e)
	if err != nil {
		if b.log != nil {
			b.log.Warn("failed to marshal observer event", zap.Error(err))
		}
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(b.conns, conn)
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection for broadcast until it errors or closes.
func (b *WebSocketBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.log != nil {
			b.log.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()

	// Drain and discard any client-sent frames so the connection stays
	// alive until the client disconnects; this broadcaster is push-only.
	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.conns, conn)
			b.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
