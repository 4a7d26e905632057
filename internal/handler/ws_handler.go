package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// inbound events are handled with this deadline
const wsHandleTimeout = 10 * time.Second

// WSHandler upgrades authenticated requests to WebSocket connections and
// routes the events clients send
type WSHandler struct {
	hub         *ws.Hub
	messages    *service.MessageService
	memberships *service.MembershipService
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewWSHandler(hub *ws.Hub, messages *service.MessageService, memberships *service.MembershipService, allowedOrigins []string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:         hub,
		messages:    messages,
		memberships: memberships,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket godoc
// @Summary Open the realtime event stream
// @Description Authenticate with ?token=<jwt>. Server events: message_created, message_deleted, member_joined, member_left, discussion_deleted, typing, stop_typing, online, offline. Client events: send_message, typing, stop_typing.
// @Tags Realtime
// @Param token query string true "Bearer token"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, currentUserID(c), currentUserName(c))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleEvent)
}

type wsSendPayload struct {
	DiscussionID uint `json:"discussion_id"`
	model.SendMessageRequest
}

type wsTypingPayload struct {
	DiscussionID uint `json:"discussion_id"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// handleEvent processes one inbound event; the returned bytes go back to
// the sender only
func (h *WSHandler) handleEvent(client *ws.Client, event ws.Inbound) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), wsHandleTimeout)
	defer cancel()

	var err error
	switch event.Type {
	case model.WSEventSendMessage:
		var p wsSendPayload
		if err = json.Unmarshal(event.Payload, &p); err != nil {
			return wsError(http.StatusBadRequest, "invalid send_message payload")
		}
		// the created message reaches the sender through the hub broadcast
		_, err = h.messages.Send(ctx, client.UserID, p.DiscussionID, p.SendMessageRequest)

	case model.WSEventTyping, model.WSEventStopTyping:
		var p wsTypingPayload
		if err = json.Unmarshal(event.Payload, &p); err != nil {
			return wsError(http.StatusBadRequest, "invalid typing payload")
		}
		err = h.memberships.BroadcastTyping(ctx, client.UserID, client.Name, p.DiscussionID, event.Type == model.WSEventTyping)

	default:
		return wsError(http.StatusBadRequest, "unknown event type: "+event.Type)
	}

	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("websocket event failed", zap.String("type", event.Type), zap.Error(err))
			return wsError(status, "internal server error")
		}
		return wsError(status, err.Error())
	}
	return nil
}

func wsError(status int, message string) []byte {
	data, _ := json.Marshal(model.WSEvent{
		Type:    model.WSEventError,
		Payload: wsErrorPayload{Message: message, Status: status},
	})
	return data
}
