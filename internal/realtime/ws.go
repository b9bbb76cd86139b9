package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"petride/internal/logger"
	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
	"petride/internal/types"
)

const (
	writeWait      = 10 * time.Second
	maxFrameBytes  = 8 << 10
	pingPeriod     = 30 * time.Second
	tokenQueryName = "token"
)

// Authenticator turns a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (order.Actor, error)
}

type Participation interface {
	IsParticipant(ctx context.Context, actor order.Actor, orderID int64) (bool, error)
	CanObserveDriver(ctx context.Context, actor order.Actor, driverID int64) (bool, error)
}

type LocationWriter interface {
	Update(ctx context.Context, driverID int64, p types.Point) (location.Location, error)
}

// Handler is the WebSocket transport in front of the Hub.
type Handler struct {
	hub       *Hub
	auth      Authenticator
	orders    Participation
	locations LocationWriter
	upgrader  websocket.Upgrader
	log       logger.ILogger
}

func NewHandler(hub *Hub, auth Authenticator, orders Participation, locations LocationWriter, log logger.ILogger) *Handler {
	return &Handler{
		hub:       hub,
		auth:      auth,
		orders:    orders,
		locations: locations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeChat handles GET /ws/chat/:id?token=...
func (h *Handler) ServeChat(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	actor, ok := h.authenticate(c)
	if !ok {
		return
	}
	allowed, err := h.orders.IsParticipant(c.Request.Context(), actor, orderID)
	if errors.Is(err, order.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warning("websocket upgrade failed", logger.Error(err))
		return
	}
	client := h.hub.Register(Scope{Kind: ScopeOrder, ID: orderID}, Participant{UserID: actor.UserID, Role: actor.Role})
	go h.writePump(conn, client)
	h.readPump(conn, client, func(ctx context.Context, frame []byte) {
		if err := h.hub.HandleChatFrame(ctx, client, frame); err != nil {
			h.log.Warning("chat frame rejected",
				logger.Int64("order_id", orderID),
				logger.Int64("user_id", actor.UserID),
				logger.Error(err),
			)
		}
	})
}

// ServeDriverLocation handles GET /ws/drivers/:id/location?token=...
// Frames from the driver are stored and echoed; observers only listen.
func (h *Handler) ServeDriverLocation(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver id"})
		return
	}
	actor, ok := h.authenticate(c)
	if !ok {
		return
	}
	allowed, err := h.orders.CanObserveDriver(c.Request.Context(), actor, driverID)
	if errors.Is(err, driver.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	isDriver := actor.IsDriver() && *actor.DriverID == driverID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warning("websocket upgrade failed", logger.Error(err))
		return
	}
	client := h.hub.Register(Scope{Kind: ScopeDriver, ID: driverID}, Participant{UserID: actor.UserID, Role: actor.Role})
	go h.writePump(conn, client)
	h.readPump(conn, client, func(ctx context.Context, frame []byte) {
		if !isDriver {
			return
		}
		var p types.Point
		if err := json.Unmarshal(frame, &p); err == nil && p.Valid() {
			if _, err := h.locations.Update(ctx, driverID, p); err != nil {
				h.log.Warning("location update failed", logger.Int64("driver_id", driverID), logger.Error(err))
			}
		}
		h.hub.BroadcastLocation(client, frame)
	})
}

func (h *Handler) authenticate(c *gin.Context) (order.Actor, bool) {
	token := c.Query(tokenQueryName)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return order.Actor{}, false
	}
	actor, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return order.Actor{}, false
	}
	return actor, true
}

// readPump blocks until the connection fails, then unregisters the client.
func (h *Handler) readPump(conn *websocket.Conn, client *Client, handle func(ctx context.Context, frame []byte)) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()
	conn.SetReadLimit(maxFrameBytes)
	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", logger.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(context.Background(), frame)
	}
}

// writePump drains the client queue. It exits when the Hub closes the queue
// or a write fails.
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case frame, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.hub.Unregister(client)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unregister(client)
				return
			}
		}
	}
}
