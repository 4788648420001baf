package handlers

import (
	"context"
	"fmt"
	"net/http"

	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/services"
	"tripwise-backend/internal/wire"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxFrameSize = 64 << 10

var upgrader = websocket.Upgrader{
	Subprotocols: wire.Subprotocols,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub          *services.WSHub
	views        *services.ViewRegistry
	userService  *services.UserService
	photoService *services.PhotoService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	views *services.ViewRegistry,
	userService *services.UserService,
	photoService *services.PhotoService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		views:        views,
		userService:  userService,
		photoService: photoService,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := services.NewClient(userID, conn, wire.ForSubprotocol(conn.Subprotocol()))
	h.hub.Register(client)
	defer h.hub.Unregister(client)
	go client.WritePump()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.sendSession(ctx, client)

	log.Info().
		Str("user_id", userID).
		Str("codec", client.Codec().Name()).
		Msg("WebSocket connection established")

	client.PrepareRead(maxFrameSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var frame wire.Frame
		if err := client.Codec().Unmarshal(data, &frame); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			sendError(client, "", "Invalid message format")
			continue
		}

		h.handleFrame(ctx, client, frame)
	}
}

func (h *WebSocketHandler) sendSession(ctx context.Context, client *services.Client) {
	state, err := h.userService.Session(ctx, client.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", client.UserID).Msg("Failed to load session")
		state = &services.SessionState{UserID: client.UserID}
	}
	err = client.Send(wire.Frame{
		Type: wire.TypeSession,
		Session: &wire.Session{
			UserID:        state.UserID,
			Username:      state.Username,
			Anonymous:     state.Anonymous,
			Ready:         state.Ready,
			NeedsUsername: state.NeedsUsername,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", client.UserID).Msg("Failed to send session message")
	}
}

// handleFrame processes incoming WebSocket messages
func (h *WebSocketHandler) handleFrame(ctx context.Context, client *services.Client, frame wire.Frame) {
	switch frame.Type {
	case wire.TypeSubscribe:
		h.handleSubscribe(ctx, client, frame)
	case wire.TypeUnsubscribe:
		if !client.CloseView(frame.SubID) {
			sendError(client, frame.SubID, "Unknown subscription")
		}
	case wire.TypePhotoUploaded:
		h.handlePhotoUploaded(ctx, client, frame)
	default:
		sendError(client, "", "Unknown message type")
	}
}

// handleSubscribe opens a view and streams its patches to the client
func (h *WebSocketHandler) handleSubscribe(ctx context.Context, client *services.Client, frame wire.Frame) {
	if frame.SubID == "" || frame.View == "" {
		sendError(client, frame.SubID, "sub_id and view are required")
		return
	}

	sink := &renderSink{client: client, subID: frame.SubID, view: frame.View}
	err := h.views.Subscribe(ctx, client, frame.SubID, frame.View, frame.Params, sink)
	if err != nil {
		_, message, ok := errorStatus(err)
		if !ok {
			log.Error().Err(err).Str("user_id", client.UserID).Str("view", frame.View).Msg("Failed to open view")
			message = fmt.Sprintf("Failed to load %s.", frame.View)
		}
		sendError(client, frame.SubID, message)
		return
	}

	log.Debug().
		Str("user_id", client.UserID).
		Str("sub_id", frame.SubID).
		Str("view", frame.View).
		Msg("View opened")
}

// handlePhotoUploaded records one upload of a batch. When the batch is
// complete every connection of the user is told.
func (h *WebSocketHandler) handlePhotoUploaded(ctx context.Context, client *services.Client, frame wire.Frame) {
	if frame.BatchID == "" || frame.PhotoID == "" || frame.OK == nil {
		sendError(client, "", "batch_id, photo_id and ok are required")
		return
	}

	outcome, err := h.photoService.ReportUpload(ctx, client.UserID, frame.BatchID, frame.PhotoID, *frame.OK)
	if err != nil {
		_, message, ok := errorStatus(err)
		if !ok {
			log.Error().Err(err).Str("user_id", client.UserID).Str("batch_id", frame.BatchID).Msg("Failed to record upload")
			message = "Failed to save uploaded images."
		}
		sendError(client, "", message)
		return
	}
	if outcome == nil {
		return
	}

	level := wire.LevelInfo
	if outcome.Failed > 0 {
		level = wire.LevelError
	}
	err = h.hub.SendToUser(client.UserID, wire.Frame{
		Type:     wire.TypeUploadComplete,
		BatchID:  outcome.BatchID,
		Uploaded: outcome.Uploaded,
		Failed:   outcome.Failed,
		Level:    level,
		Message:  outcome.Message,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", client.UserID).Msg("Failed to send upload_complete message")
	}

	log.Info().
		Str("user_id", client.UserID).
		Str("batch_id", outcome.BatchID).
		Int("uploaded", outcome.Uploaded).
		Int("failed", outcome.Failed).
		Msg("Upload batch complete")
}

// sendError sends an error frame to one connection
func sendError(client *services.Client, subID, message string) {
	err := client.Send(wire.Frame{
		Type:    wire.TypeError,
		SubID:   subID,
		Level:   wire.LevelError,
		Message: message,
	})
	if err != nil {
		log.Debug().Err(err).Str("user_id", client.UserID).Msg("Failed to send error message")
	}
}

// renderSink turns view patches into render frames for one subscription
type renderSink struct {
	client *services.Client
	subID  string
	view   string
}

func (s *renderSink) Render(section string, seq uint64, count int, ops any) {
	err := s.client.Send(wire.Frame{
		Type:    wire.TypeRender,
		SubID:   s.subID,
		Section: section,
		Seq:     seq,
		Count:   count,
		Ops:     ops,
	})
	if err != nil {
		log.Debug().Err(err).Str("user_id", s.client.UserID).Str("sub_id", s.subID).Msg("Failed to send render message")
	}
}

func (s *renderSink) Fail(err error) {
	sendError(s.client, s.subID, fmt.Sprintf("Failed to load %s.", s.view))
}
