package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"frenzy-service/internal/service/run"
	pkgAuth "frenzy-service/pkg/auth"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	runSvc *run.Service
}

func NewHandler(runSvc *run.Service) *Handler {
	return &Handler{runSvc: runSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

func (h *Handler) HandleRunWS(c *gin.Context) {
	runIDStr := c.Param("runId")
	runID, err := strconv.ParseInt(runIDStr, 10, 64)
	if err != nil || runID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.SubjectID

	if err := h.runSvc.ValidateRunAccess(c.Request.Context(), userID, runID); err != nil {
		switch {
		case errors.Is(err, appErr.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case errors.Is(err, appErr.ErrRunNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		case errors.Is(err, appErr.ErrRunAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "run access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate run access"})
		}
		return
	}

	rt, err := h.runSvc.GetRuntime(c.Request.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrRunNotFound), errors.Is(err, appErr.ErrNoSavedRun):
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		case errors.Is(err, appErr.ErrRunFinished):
			c.JSON(http.StatusGone, gin.H{"error": "run already finished"})
		case errors.Is(err, appErr.ErrCorruptSavedRun):
			c.JSON(http.StatusConflict, gin.H{"error": "saved run failed integrity check"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	logger.Log.Info("New WebSocket connection",
		zap.Int64("runID", runID),
		zap.Int64("userID", userID),
		zap.String("connID", connID),
	)

	client := newClient(conn, connID, runID, rt)
	client.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn      *websocket.Conn
	connID    string
	runID     int64
	rt        *run.Runtime
	outbound  <-chan run.OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, connID string, runID int64, rt *run.Runtime) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		connID:    connID,
		runID:     runID,
		rt:        rt,
		outbound:  rt.Subscribe(connID),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.rt.Unsubscribe(c.connID)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("connID", c.connID), zap.Int64("runID", c.runID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(run.OutgoingMessage{
				Type: "error",
				Seq:  0,
				Data: gin.H{"message": "invalid payload"},
			})
			continue
		}
		if incoming.Type == "" {
			continue
		}
		if incoming.Type == "ping" {
			c.safeWrite(run.OutgoingMessage{Type: "pong", Seq: 0, Data: gin.H{"message": "pong"}})
			continue
		}

		if err := c.rt.HandleAction(incoming.Type, incoming.Data); err != nil {
			c.safeWrite(run.OutgoingMessage{
				Type: "error",
				Seq:  0,
				Data: gin.H{"message": fmt.Sprintf("action failed: %v", err)},
			})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("connID", c.connID), zap.Int64("runID", c.runID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg run.OutgoingMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.String("connID", c.connID), zap.Int64("runID", c.runID))
	}
}
