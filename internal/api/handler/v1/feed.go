package v1

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FeedHandler streams job progress over a websocket.
type FeedHandler struct {
	svc      LotteryService
	upgrader websocket.Upgrader
}

func NewFeedHandler(svc LotteryService, allowedOrigins []string) *FeedHandler {
	return &FeedHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

type feedClient struct {
	conn   *websocket.Conn
	events <-chan service.JobEvent
	cancel func()
	jobID  uint
}

// HandleJobFeed godoc
// @Summary      Follow a lottery job
// @Description  Upgrades to a websocket that receives the job's current state, then every progress change. The server closes the socket after the final COMPLETED or FAILED event.
// @Tags         lottery
// @Param        jobID  path  int     true   "Job ID"
// @Param        token  query string  false  "JWT, for clients that cannot set headers"
// @Success      101    {object}  service.JobEvent
// @Failure      401    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /lottery/jobs/{jobID}/ws [get]
// @Security BearerAuth
func (h *FeedHandler) HandleJobFeed(ctx *gin.Context) {
	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	// Subscribing before the upgrade lets a missing job answer with a
	// plain 404.
	events, cancel, err := h.svc.Subscribe(ctx.Request.Context(), jobID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleJobFeed -> h.svc.Subscribe", err))
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		cancel()
		zap.L().Warn("websocket upgrade failed", zap.Uint("job_id", jobID), zap.Error(err))
		return
	}

	c := &feedClient{conn: conn, events: events, cancel: cancel, jobID: jobID}
	go c.writePump()
	go c.readPump()
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames. Clients have nothing to say.
func (c *feedClient) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("job feed closed", zap.Uint("job_id", c.jobID), zap.Error(err))
			}
			return
		}
	}
}
