package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/tablesync/internal/types"
)

const writeTimeout = 5 * time.Second

// subscribeMessage is what a client sends after connecting and on every
// query change
type subscribeMessage struct {
	Action string `json:"action"`
	types.QueryParams
}

type replacement struct {
	UpdatedData types.RecordSet `json:"updated_data"`
}

// subscriber is one websocket connection and the query it last asked for
type subscriber struct {
	conn     *websocket.Conn
	resource string

	writeMu sync.Mutex

	mu     sync.Mutex
	params types.QueryParams
}

func (s *subscriber) query() types.QueryParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *subscriber) setQuery(p types.QueryParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p.Normalize()
}

func (s *subscriber) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// PageFunc computes the rows a subscriber should see
type PageFunc func(ctx context.Context, resource string, p types.QueryParams) (types.RecordSet, error)

// Hub tracks push subscribers per resource
type Hub struct {
	page   PageFunc
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates a hub that renders pages with page
func NewHub(page PageFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{page: page, logger: logger, subs: make(map[string]map[*subscriber]struct{})}
}

// Serve registers conn as a subscriber of resource and reads its subscribe
// messages until the connection closes
func (h *Hub) Serve(resource string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, resource: resource, params: types.DefaultQueryParams()}
	h.add(sub)
	defer func() {
		h.remove(sub)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("subscriber read failed", "resource", resource, "error", err)
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Action != "subscribe" {
			h.logger.Debug("ignoring client message", "resource", resource, "message", string(data))
			continue
		}
		sub.setQuery(msg.QueryParams)
		h.logger.Debug("subscription updated", "resource", resource, "params", sub.query())
	}
}

// Count returns the number of subscribers of resource
func (h *Hub) Count(resource string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[resource])
}

// Broadcast sends every subscriber of resource the page matching its own
// query. Subscribers whose write fails are dropped.
func (h *Hub) Broadcast(ctx context.Context, resource string) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[resource]))
	for s := range h.subs[resource] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, s := range subs {
		g.Go(func() error {
			rows, err := h.page(gctx, resource, s.query())
			if err != nil {
				return err
			}
			if err := s.write(replacement{UpdatedData: rows}); err != nil {
				h.logger.Debug("dropping subscriber", "resource", resource, "error", err)
				h.remove(s)
				s.conn.Close()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("broadcast failed", "resource", resource, "error", err)
	}
}

// CloseAll disconnects every subscriber
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*subscriber
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.conn.Close()
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.resource]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[s.resource] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[s.resource], s)
}
