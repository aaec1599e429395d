package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/feed"
)

// UnreadHandlers streams a user's total unread count.
type UnreadHandlers struct {
	ledger *core.Ledger
	feed   feed.Broker
	log    *zerolog.Logger
}

// NewUnreadHandlers creates a new unread handlers instance.
func NewUnreadHandlers(ledger *core.Ledger, broker feed.Broker, logger *zerolog.Logger) *UnreadHandlers {
	return &UnreadHandlers{ledger: ledger, feed: broker, log: logger}
}

// UnreadCount is the payload of each streamed event.
type UnreadCount struct {
	Cnt int `json:"cnt"`
}

// Stream sends the current total, then one event per change, until the client goes away.
// GET /chat/unread/cnt/:userId
func (h *UnreadHandlers) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	// Subscribe before reading the total so no change falls in between.
	sub, err := h.feed.Subscribe(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to subscribe to unread feed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}
	defer sub.Close()

	total, err := h.ledger.Total(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load unread total")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("message", UnreadCount{Cnt: total})
	c.Writer.Flush()

	h.log.Debug().Str("user_id", userID).Msg("unread stream opened")
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case u, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("message", UnreadCount{Cnt: u.Count})
			return true
		}
	})
	h.log.Debug().Str("user_id", userID).Msg("unread stream closed")
}
