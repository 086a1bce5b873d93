package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
	"quicktasker/gig-service/internal/respond"
	"quicktasker/gig-service/internal/session"
)

const writeTimeout = 10 * time.Second

var (
	errSignedOut  = errors.New("signed out")
	errFeedClosed = errors.New("feed closed")
)

// StatusReload closes a stream whose reader fell behind; the client should
// reload the history and reconnect.
const StatusReload = websocket.StatusTryAgainLater

// StreamEvent is one frame of the websocket stream.
type StreamEvent struct {
	Type    string        `json:"type"`
	Message model.Message `json:"message"`
}

// Handler serves the chat routes. Every route requires a session and is
// limited to the job's poster and applicants:
//
//	GET  /listings/{id}/messages          → history
//	POST /listings/{id}/messages          → send {receiver_id, content}
//	GET  /listings/{id}/messages/stream   → websocket: history, then live messages
type Handler struct {
	svc      *Service
	sessions session.Source
	origins  []string
	logger   *slog.Logger
}

// NewHandler returns a Handler. Stream connections end when the user signs
// out on sessions. origins lists the host patterns allowed to open streams
// from another origin.
func NewHandler(svc *Service, sessions session.Source, origins []string, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, origins: origins, logger: logger}
}

// RegisterRoutes mounts the chat routes on mux behind gate.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	mux.Handle("GET /listings/{id}/messages", gate(http.HandlerFunc(h.history)))
	mux.Handle("POST /listings/{id}/messages", gate(http.HandlerFunc(h.send)))
	mux.Handle("GET /listings/{id}/messages/stream", gate(http.HandlerFunc(h.stream)))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	user, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}
	msgs, err := h.svc.History(r.Context(), user, r.PathValue("id"))
	if err != nil {
		respond.Err(w, h.logger, err, "Could not load messages")
		return
	}
	respond.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	sender, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}

	var body struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := respond.Decode(r, &body); err != nil {
		respond.Err(w, h.logger, err, "")
		return
	}

	msg, err := h.svc.Send(r.Context(), r.PathValue("id"), sender, body.ReceiverID, body.Content)
	if err != nil {
		respond.Err(w, h.logger, err, "Could not send message")
		return
	}
	respond.JSON(w, http.StatusCreated, msg)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	user, ok := session.FromContext(r.Context())
	if !ok {
		respond.Err(w, h.logger, apperr.ErrUnauthenticated, "")
		return
	}
	jobID := r.PathValue("id")

	if _, err := h.svc.Authorize(r.Context(), user, jobID); err != nil {
		respond.Err(w, h.logger, err, "Could not open chat")
		return
	}

	status := session.Watch(h.sessions, user.ID)
	defer status.Stop()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket accept failed", "job_id", jobID, "error", err.Error())
		return
	}
	defer conn.CloseNow()

	// Push-only: reading is needed for control frames and to notice the
	// client leaving.
	ctx := conn.CloseRead(r.Context())

	err = h.svc.With(ctx, user, jobID, func(ctx context.Context, c *Channel, a Access) error {
		sent := make(map[string]struct{})
		for _, m := range c.Messages() {
			if !a.Sees(m) {
				continue
			}
			if err := h.write(ctx, conn, m); err != nil {
				return err
			}
			sent[m.ID] = struct{}{}
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-status.Done():
				return errSignedOut
			case m, ok := <-c.Updates():
				if !ok {
					if err := c.Err(); err != nil {
						return err
					}
					return errFeedClosed
				}
				if _, dup := sent[m.ID]; dup || !a.Sees(m) {
					continue
				}
				if err := h.write(ctx, conn, m); err != nil {
					return err
				}
				sent[m.ID] = struct{}{}
			}
		}
	})

	switch {
	case err == nil, errors.Is(err, context.Canceled), websocket.CloseStatus(err) != -1:
		conn.Close(websocket.StatusNormalClosure, "bye")
	case errors.Is(err, errSignedOut):
		conn.Close(websocket.StatusPolicyViolation, "signed out")
	case errors.Is(err, errFeedClosed):
		conn.Close(websocket.StatusGoingAway, "feed closed")
	case errors.Is(err, ErrLagged):
		conn.Close(StatusReload, "too far behind, reload history")
	case apperr.Status(err) == http.StatusNotFound, apperr.Status(err) == http.StatusForbidden:
		conn.Close(websocket.StatusPolicyViolation, "conversation not available")
	default:
		h.logger.Error("chat stream failed", "job_id", jobID, "user_id", user.ID, "error", err.Error())
		conn.Close(websocket.StatusInternalError, "stream failed")
	}
}

// write sends m unless the connection is already gone.
func (h *Handler) write(ctx context.Context, conn *websocket.Conn, m model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, StreamEvent{Type: "message", Message: m})
}
