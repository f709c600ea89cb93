package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/middleware"
	"github.com/jcopacetic/lumi/internal/realtime"
	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/services"
	"github.com/jcopacetic/lumi/internal/ws"
)

type WSHandler struct {
	log         *logger.Logger
	hub         *ws.Hub
	authService services.AuthService

	upgrader websocket.Upgrader
}

func NewWSHandler(log *logger.Logger, hub *ws.Hub, authService services.AuthService) *WSHandler {
	return &WSHandler{
		log:         log.With("handler", "WSHandler"),
		hub:         hub,
		authService: authService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin is enforced by token auth; the browser Origin
			// header carries no trust here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the socket, authenticates the token, and joins the caller to
// their partner group. Auth failures close with 4001, group mismatches with
// 4003: the HTTP handshake has already succeeded by the time we can tell.
func (wh *WSHandler) Serve(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("partner_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_partner_id", err)
		return
	}

	socket, err := wh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	tokenString := middleware.ExtractToken(c)
	if tokenString == "" {
		closeWith(socket, ws.CloseUnauthorized, "authentication required")
		return
	}
	ctx, err := wh.authService.SetContextFromToken(c.Request.Context(), tokenString)
	if err != nil {
		closeWith(socket, ws.CloseUnauthorized, "invalid or expired token")
		return
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		closeWith(socket, ws.CloseUnauthorized, "authentication required")
		return
	}
	if !rd.IsStaff && rd.PartnerID != partnerID {
		closeWith(socket, ws.CloseForbidden, "not a member of this partner")
		return
	}

	conn := ws.NewConn(socket, rd.UserID)
	wh.hub.Join(realtime.Group(partnerID.String()), conn)
	wh.log.Debug("WebSocket connected", "conn_id", conn.ID, "user_id", rd.UserID, "partner_id", partnerID)

	go conn.WritePump()
	conn.ReadPump(wh.hub, wh.log)
}

func closeWith(socket *websocket.Conn, code int, reason string) {
	_ = socket.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(5*time.Second),
	)
	_ = socket.Close()
}
