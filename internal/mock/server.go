package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/studiowebux/tablesync/internal/auth"
	"github.com/studiowebux/tablesync/internal/types"
)

const defaultTokenTTL = 30 * time.Minute

// Server represents the mock backend
type Server struct {
	config     *Config
	store      *Store
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	logs      []RequestLog
	logsMutex sync.RWMutex

	broadcastMu sync.Mutex
	broadcasts  sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a mock backend serving config's resources from store
func NewServer(config *Config, store *Store, opts ...Option) *Server {
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.Host == "" {
		config.Host = "localhost"
	}

	s := &Server{
		config: config,
		store:  store,
		logger: slog.Default(),
		logs:   make([]RequestLog, 0),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.page, s.logger)
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
	})

	for _, res := range s.config.Resources {
		h := &resourceHandlers{server: s, res: res}
		r.Route(res.Path, func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/", h.list)
			r.Post("/", h.create)
			r.Put("/sort", h.sort)
			r.Post("/sort", h.sort)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.remove)
		})
	}

	r.Get("/ws/{name}", s.handleSubscribe)
	return r
}

// Start listens on host:port and serves in the background
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("mock server error", "error", err)
		}
	}()

	s.logger.Info("mock backend listening", "address", s.GetAddress())
	return nil
}

// Stop stops the server and disconnects every subscriber
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.CloseAll()
	err := s.httpServer.Shutdown(ctx)
	s.broadcasts.Wait()
	return err
}

// GetAddress returns the base URL of the server
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// Hub returns the push hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Flush waits for pending broadcasts
func (s *Server) Flush() {
	s.broadcasts.Wait()
}

func (s *Server) page(ctx context.Context, resource string, p types.QueryParams) (types.RecordSet, error) {
	res, ok := s.resource(resource)
	if !ok {
		return nil, fmt.Errorf("unknown resource %s", resource)
	}
	rows, _, err := s.store.List(ctx, res.Path, res.SearchFields, p)
	return rows, err
}

func (s *Server) resource(path string) (Resource, bool) {
	for _, res := range s.config.Resources {
		if res.Path == path || res.Name() == path {
			return res, true
		}
	}
	return Resource{}, false
}

// broadcast pushes the current state of resource to its subscribers. Runs
// are serialized so the last one always carries the latest rows.
func (s *Server) broadcast(resource string) {
	s.broadcasts.Add(1)
	go func() {
		defer s.broadcasts.Done()
		s.broadcastMu.Lock()
		defer s.broadcastMu.Unlock()
		s.hub.Broadcast(context.Background(), resource)
	}()
}

// Auth

func (s *Server) ttl() time.Duration {
	if s.config.TokenTTL > 0 {
		return time.Duration(s.config.TokenTTL)
	}
	return defaultTokenTTL
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, user types.User) {
	token, expires, err := s.store.IssueToken(r.Context(), user.ID, s.ttl())
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "failed to issue token"})
		return
	}
	writeJSON(w, http.StatusOK, auth.TokenResponse{
		AccessToken:    token,
		TokenType:      "bearer",
		ExpirationTime: expires,
		UserID:         user.ID,
		EmployeeNo:     user.EmployeeNo,
		Name:           user.Name,
		Departments:    user.Departments,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, types.APIResult{Message: "invalid form"})
		return
	}
	user, err := s.store.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if errors.Is(err, ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, types.APIResult{Message: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "login failed"})
		return
	}
	s.issue(w, r, user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	user, err := s.store.UserForToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, types.APIResult{Message: "invalid token"})
		return
	}
	if err := s.store.RevokeToken(r.Context(), token); err != nil {
		s.logger.Warn("failed to revoke refreshed token", "error", err)
	}
	s.issue(w, r, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RevokeToken(r.Context(), bearer(r)); err != nil {
		s.logger.Warn("failed to revoke token", "error", err)
	}
	writeJSON(w, http.StatusOK, types.APIResult{Success: true, Message: "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.UserForToken(r.Context(), bearer(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, types.APIResult{Message: "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// authorized accepts the static token, any issued token, or anything when
// no static token is configured
func (s *Server) authorized(r *http.Request, token string) bool {
	if s.config.Token == "" {
		return true
	}
	if token == s.config.Token {
		return true
	}
	_, err := s.store.UserForToken(r.Context(), token)
	return err == nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r, bearer(r)) {
			writeJSON(w, http.StatusUnauthorized, types.APIResult{Message: "not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Push

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearer(r)
	}
	if !s.authorized(r, token) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.logger.Debug("subscriber connected", "resource", res.Path)
	s.hub.Serve(res.Path, conn)
}

// Request log

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rule := "none"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			rule = rctx.RoutePattern()
		}
		entry := RequestLog{
			Timestamp:   start,
			Method:      r.Method,
			Path:        r.URL.Path,
			MatchedRule: rule,
			Status:      ww.Status(),
			Duration:    time.Since(start),
		}
		s.logger.Debug("request", "method", entry.Method, "path", entry.Path, "status", entry.Status, "duration", entry.Duration)
		if s.config.Logging {
			s.logRequest(entry)
		}
	})
}

// logRequest adds a request to the log
func (s *Server) logRequest(log RequestLog) {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, log)

	// Keep only last 1000 logs
	if len(s.logs) > 1000 {
		s.logs = s.logs[len(s.logs)-1000:]
	}
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// Resources

type resourceHandlers struct {
	server *Server
	res    Resource
}

func (h *resourceHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := types.QueryParams{SearchText: q.Get("searchQuery")}
	p.Page, _ = strconv.Atoi(q.Get("currentPage"))
	p.PageSize, _ = strconv.Atoi(q.Get("itemsPerPage"))

	rows, total, err := h.server.store.List(r.Context(), h.res.Path, h.res.SearchFields, p)
	if err != nil {
		h.server.logger.Error("list failed", "resource", h.res.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "failed to list records"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		h.res.ResponseKey(): rows,
		"totalCount":        total,
	})
}

func (h *resourceHandlers) create(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if result, ok := h.validate(r.Context(), rec, 0); !ok {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if _, err := h.server.store.Create(r.Context(), h.res.Path, withoutID(rec)); err != nil {
		h.server.logger.Error("create failed", "resource", h.res.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "failed to create record"})
		return
	}
	h.server.broadcast(h.res.Path)
	writeJSON(w, http.StatusOK, types.APIResult{Success: true, Message: "Created"})
}

func (h *resourceHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if result, ok := h.validate(r.Context(), rec, id); !ok {
		writeJSON(w, http.StatusOK, result)
		return
	}
	err := h.server.store.Update(r.Context(), h.res.Path, id, rec)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.APIResult{Message: err.Error()})
		return
	}
	if err != nil {
		h.server.logger.Error("update failed", "resource", h.res.Path, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "failed to update record"})
		return
	}
	h.server.broadcast(h.res.Path)
	writeJSON(w, http.StatusOK, types.APIResult{Success: true, Message: "Updated"})
}

func (h *resourceHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.server.store.Delete(r.Context(), h.res.Path, id)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.APIResult{Message: err.Error()})
		return
	}
	if err != nil {
		h.server.logger.Error("delete failed", "resource", h.res.Path, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.APIResult{Message: "failed to delete record"})
		return
	}
	h.server.broadcast(h.res.Path)
	writeJSON(w, http.StatusOK, types.APIResult{Success: true, Message: "Deleted"})
}

func (h *resourceHandlers) sort(w http.ResponseWriter, r *http.Request) {
	var assignments []types.SortAssignment
	if err := json.NewDecoder(r.Body).Decode(&assignments); err != nil {
		writeJSON(w, http.StatusBadRequest, types.APIResult{Message: "invalid sort payload"})
		return
	}
	err := h.server.store.Sort(r.Context(), h.res.Path, assignments)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.APIResult{Message: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.APIResult{Message: err.Error()})
		return
	}
	h.server.broadcast(h.res.Path)
	writeJSON(w, http.StatusOK, types.APIResult{Success: true, Message: "Order updated"})
}

// validate checks required and unique fields. A failure names the field.
func (h *resourceHandlers) validate(ctx context.Context, rec types.Record, exceptID int64) (types.APIResult, bool) {
	for _, field := range h.res.Required {
		if v, ok := rec[field]; !ok || v == nil || strings.TrimSpace(fmt.Sprint(v)) == "" {
			return types.APIResult{Message: field + " is required", Field: field}, false
		}
	}
	if h.res.Unique == "" {
		return types.APIResult{}, true
	}
	value, ok := rec[h.res.Unique]
	if !ok {
		return types.APIResult{}, true
	}
	exists, err := h.server.store.Exists(ctx, h.res.Path, h.res.Unique, value, exceptID)
	if err != nil {
		h.server.logger.Error("uniqueness check failed", "resource", h.res.Path, "error", err)
		return types.APIResult{Message: "validation failed"}, false
	}
	if exists {
		return types.APIResult{Message: fmt.Sprintf("%v is already registered", value), Field: h.res.Unique}, false
	}
	return types.APIResult{}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	var rec types.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		writeJSON(w, http.StatusBadRequest, types.APIResult{Message: "invalid record payload"})
		return nil, false
	}
	return rec, true
}

func withoutID(rec types.Record) types.Record {
	out := rec.Clone()
	delete(out, "id")
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, types.APIResult{Message: ErrNotFound.Error()})
		return 0, false
	}
	return id, true
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
