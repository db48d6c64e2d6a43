package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/scumcal/pkg/engine"
	"github.com/dougsko/scumcal/pkg/logging"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// wsEventBuffer is the per client backlog before live events are dropped
const wsEventBuffer = 64

func (d *CalDaemon) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": engine.Version,
	})
}

// handleGetStatus returns daemon status via socket
func (d *CalDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleGetChannels returns the calibration state of every channel
func (d *CalDaemon) handleGetChannels(c *gin.Context) {
	channels, err := d.socketClient.GetChannels()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// handleGetChannel returns the calibration state of one channel
func (d *CalDaemon) handleGetChannel(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	report, err := d.socketClient.GetChannel(channel)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleGetPlan lists the candidates of a channel's sweep window
func (d *CalDaemon) handleGetPlan(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	mode, err := tuning.ParseMode(c.DefaultQuery("mode", "rx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid limit",
		})
		return
	}

	codes, err := d.socketClient.GetPlan(channel, mode, limit)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": channel,
		"mode":    mode.String(),
		"codes":   codes,
		"count":   len(codes),
	})
}

// handleGetEvents returns recent diagnostic events via socket
func (d *CalDaemon) handleGetEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(engine.DefaultEventLimit)))
	if err != nil {
		limit = engine.DefaultEventLimit
	}

	events, err := d.socketClient.GetEvents(c.Query("kind"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// handleRecalibrate starts a new calibration session
func (d *CalDaemon) handleRecalibrate(c *gin.Context) {
	if err := d.socketClient.Recalibrate(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "recalibrating",
	})
}

// handleSetFeedback turns IF feedback on or off
func (d *CalDaemon) handleSetFeedback(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := d.socketClient.SetFeedback(*req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled": *req.Enabled,
	})
}

func channelParam(c *gin.Context) (int, bool) {
	channel, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid channel number",
		})
		return 0, false
	}
	return channel, true
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWebSocket streams live calibration events
func (d *CalDaemon) handleEventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("WEB", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := d.coreEngine.Subscribe(wsEventBuffer)
	defer unsubscribe()

	logging.Debug("WEB", "Event WebSocket client connected")

	// The read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(engine.ToProtocolEvent(0, ev)); err != nil {
				logging.Debugf("WEB", "WebSocket write error: %v", err)
				return
			}

		case <-closed:
			logging.Debug("WEB", "Event WebSocket client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}
