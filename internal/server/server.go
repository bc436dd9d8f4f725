// Package server accepts table websockets and wires them into rooms.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/internal/identity"
	"github.com/park285/dama-table/internal/metrics"
	"github.com/park285/dama-table/internal/msgcat"
	"github.com/park285/dama-table/internal/obslog"
	"github.com/park285/dama-table/internal/preview"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/internal/table"
	"github.com/park285/dama-table/pkg/tabledto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	defaultReadLimit    = 64 << 10
	defaultWriteTimeout = 10 * time.Second
)

// Config holds the collaborators and connection limits of a Server.
type Config struct {
	Registry *table.Registry
	Store    store.Store
	Verifier identity.Verifier
	Catalog  *msgcat.Catalog
	Metrics  *metrics.Metrics
	Preview  *preview.Renderer // nil disables the board image route

	SendQueueSize int
	ReadLimit     int64
	WriteTimeout  time.Duration
	// RatePerSec limits inbound frames per connection; 0 disables the limit.
	RatePerSec     float64
	RateBurst      int
	AllowedOrigins []string
}

type Server struct {
	registry *table.Registry
	store    store.Store
	verifier identity.Verifier
	catalog  *msgcat.Catalog
	metrics  *metrics.Metrics
	preview  *preview.Renderer
	cfg      Config
}

func New(cfg Config) *Server {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 32
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.Catalog == nil {
		cfg.Catalog = msgcat.MustDefault()
	}
	return &Server{
		registry: cfg.Registry,
		store:    cfg.Store,
		verifier: cfg.Verifier,
		catalog:  cfg.Catalog,
		metrics:  cfg.Metrics,
		preview:  cfg.Preview,
		cfg:      cfg,
	}
}

func (s *Server) Router() http.Handler {
	router := httprouter.New()
	router.GET("/ws", s.handleWS)
	router.GET("/healthz", s.handleHealth)
	router.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	if s.preview != nil {
		router.GET("/tables/:table/board.png", s.handleBoard)
	}
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "rooms": s.registry.Len()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tableID, token := credentials(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("table_id", tableID), zap.Error(err))
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	id := uuid.NewString()
	log := obslog.With(zap.String("conn_id", id), zap.String("table_id", tableID))
	c := newConn(id, ws, s.cfg.SendQueueSize, s.cfg.WriteTimeout, log, s.metrics)
	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	room, p, err := s.admit(ctx, c, tableID, token)
	if err != nil {
		var ae *AdmissionError
		if !errors.As(err, &ae) {
			ae = &AdmissionError{Kind: StoreUnavailable, Err: err}
		}
		s.metrics.Admission(string(ae.Kind))
		log.Info("admission_rejected", zap.String("kind", string(ae.Kind)), zap.Error(ae.Err))
		c.Send(tabledto.Error{Type: tabledto.TypeError, Message: s.catalog.Text(ae.Kind.messageKey(), nil)})
		c.closeWith(websocket.StatusPolicyViolation, string(ae.Kind))
		<-writerDone
		return
	}
	s.metrics.Admission("admitted")
	log = log.With(zap.Int("slot", p.Slot))

	s.readLoop(ctx, c, room, p.ConnID, log)

	if err := room.Leave(p.ConnID); err != nil {
		log.Warn("leave_error", zap.Error(err))
	}
	c.closeWith(websocket.StatusNormalClosure, "")
	<-writerDone
}

func (s *Server) readLoop(ctx context.Context, c *conn, room *table.Room, connID string, log *zap.Logger) {
	var limiter *rate.Limiter
	if s.cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSec), s.cfg.RateBurst)
	}
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				log.Debug("ws_read_end", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.drop(log, "binary", nil)
			continue
		}
		if limiter != nil && !limiter.Allow() {
			s.drop(log, "rate_limited", nil)
			continue
		}
		s.dispatch(room, connID, data, log)
	}
}

// dispatch applies one inbound frame. Anything unparseable or of an unknown
// type is dropped without telling the sender.
func (s *Server) dispatch(room *table.Room, connID string, data []byte, log *zap.Logger) {
	typ, err := tabledto.PeekType(data)
	if err != nil {
		s.drop(log, "malformed", err)
		return
	}
	switch typ {
	case tabledto.TypeInitBoard:
		var req tabledto.InitBoardRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.drop(log, "malformed", err)
			return
		}
		err = room.InitBoard(connID, req)
	case tabledto.TypeMove:
		var req tabledto.MoveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.drop(log, "malformed", err)
			return
		}
		err = room.Move(connID, req)
	default:
		log.Warn("frame_dropped", zap.String("reason", "unknown_type"), zap.String("type", typ))
		s.metrics.Dropped("unknown_type")
		return
	}
	if err != nil {
		log.Warn("relay_error", zap.String("type", typ), zap.Error(err))
	}
}

func (s *Server) drop(log *zap.Logger, reason string, err error) {
	s.metrics.Dropped(reason)
	if err != nil {
		log.Warn("frame_dropped", zap.String("reason", reason), zap.Error(err))
		return
	}
	log.Warn("frame_dropped", zap.String("reason", reason))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := strings.TrimSpace(ps.ByName("table"))
	snap, live := s.registry.Snapshot(id)
	if !live {
		rec, err := s.store.Load(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.metrics.StoreError("load")
			obslog.L().Warn("board_load_error", zap.String("table_id", id), zap.Error(err))
			http.Error(w, s.catalog.Text(msgcat.KeyStoreUnavailable, nil), http.StatusServiceUnavailable)
			return
		}
		snap = rec.Snapshot
	}

	seated := 0
	if room, ok := s.registry.Lookup(id); ok {
		seated = len(room.Players())
	}
	opts := preview.Options{
		Title: s.catalog.Text(msgcat.KeyPreviewTitle, map[string]any{"Table": id}),
		Turn:  s.catalog.Text(msgcat.KeyPreviewTurn, map[string]any{"Side": s.catalog.SideLabel(sideToMove(snap))}),
	}
	if seated < 2 {
		opts.Status = s.catalog.Text(msgcat.KeyPreviewWaiting, nil)
	}

	img, err := s.preview.RenderPNG(r.Context(), snap, opts)
	if err != nil {
		obslog.L().Warn("board_render_error", zap.String("table_id", id), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func sideToMove(s domain.Snapshot) int {
	if s.Turn%2 == 0 {
		return domain.SideBlack
	}
	return domain.SideWhite
}
