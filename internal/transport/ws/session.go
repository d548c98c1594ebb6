// Package ws is the session transport: one WebSocket connection holding one
// dedicated store connection for a sequence of searches.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/db"
	"github.com/openscripture/versevec/internal/domain"
	"github.com/openscripture/versevec/internal/metrics"
	"github.com/openscripture/versevec/internal/transport/apierr"
)

// SearchRunner runs one search on a caller-held store connection.
type SearchRunner interface {
	SearchOn(ctx context.Context, conn db.Querier, req *domain.SearchRequest) ([]domain.Verse, error)
}

// Handler upgrades HTTP requests into search sessions.
type Handler struct {
	pool          db.Pool
	search        SearchRunner
	defaultCorpus string
	logger        *zap.Logger
	upgrader      websocket.Upgrader
}

// NewHandler creates a session handler.
func NewHandler(pool db.Pool, search SearchRunner, defaultCorpus string, logger *zap.Logger) *Handler {
	return &Handler{
		pool:          pool,
		search:        search,
		defaultCorpus: defaultCorpus,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP handles GET /semantic-search/session. The store connection is
// checked out once, right after the upgrade, and held until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(zap.String("session_id", middleware.GetReqID(r.Context())))

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	conn, err := h.pool.Acquire(r.Context())
	if err != nil {
		log.Warn("session rejected, no store connection", zap.Error(err))
		_, payload := apierr.FromError(domain.ErrStoreUnavailable)
		_ = ws.WriteJSON(payload)
		return
	}
	defer conn.Release()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	log.Debug("session opened", zap.String("remote", r.RemoteAddr))

	h.serve(r.Context(), log, ws, conn)
}

// serve answers messages one at a time, in arrival order, on the session's
// dedicated connection.
func (h *Handler) serve(ctx context.Context, log *zap.Logger, ws *websocket.Conn, conn db.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("session read failed", zap.Error(err))
			}
			return
		}

		var req domain.SearchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			// A malformed message gets an error reply; the session stays up.
			if werr := ws.WriteJSON(apierr.BadRequest("invalid message: " + err.Error())); werr != nil {
				return
			}
			continue
		}
		if req.Corpus == "" {
			req.Corpus = h.defaultCorpus
		}

		verses, err := h.search.SearchOn(ctx, conn, &req)
		if err != nil {
			_, payload := apierr.FromError(err)
			if werr := ws.WriteJSON(payload); werr != nil {
				return
			}
			// Only a store failure can take the dedicated connection with
			// it; validation and provider errors leave it untouched. Tear
			// the session down if the connection no longer answers.
			var storeErr *db.Error
			if errors.As(err, &storeErr) {
				if perr := conn.Ping(ctx); perr != nil {
					log.Warn("session store connection lost", zap.Error(perr))
					return
				}
			}
			continue
		}

		if verses == nil {
			verses = []domain.Verse{}
		}
		if err := ws.WriteJSON(verses); err != nil {
			return
		}
	}
}
