package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/videflow/videflow/internal/service"
	"github.com/videflow/videflow/internal/signal"
)

type SignalController struct {
	hub         *signal.Hub
	history     *service.History
	auth        service.AuthService
	stunServers []string
	sendBuffer  int
	log         *slog.Logger
	upgrader    websocket.Upgrader
}

func NewSignalController(hub *signal.Hub, history *service.History, auth service.AuthService, stunServers []string, sendBuffer int, log *slog.Logger) *SignalController {
	return &SignalController{
		hub:         hub,
		history:     history,
		auth:        auth,
		stunServers: stunServers,
		sendBuffer:  sendBuffer,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades the request and hands the connection to the hub. The
// client is unjoined until it sends a join-room event over the socket.
func (c *SignalController) Connect(ctx *gin.Context) {
	identity, err := c.auth.Identify(ctx.Request)
	if err != nil {
		if errors.Is(err, service.ErrNameRequired) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("error", err.Error()))
		return
	}

	client := signal.NewClient(c.hub, conn, identity, c.sendBuffer, c.log)
	c.hub.Attach(client)
}

func (c *SignalController) ListParticipants(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	if roomID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	participants, err := c.hub.Participants(ctx.Request.Context(), roomID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (c *SignalController) ChatHistory(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	if roomID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	limit := 100
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := c.history.ChatHistory(ctx.Request.Context(), roomID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": messages})
}

// ICEServers hands browsers the STUN/TURN configuration to dial with.
func (c *SignalController) ICEServers(ctx *gin.Context) {
	servers := []webrtc.ICEServer{
		{URLs: c.stunServers},
	}
	ctx.JSON(http.StatusOK, gin.H{"ice_servers": servers})
}
