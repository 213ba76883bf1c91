package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/store"
)

// MaxHistoryPage caps the limit query parameter of the history endpoint.
const MaxHistoryPage = store.DefaultRecentLimit

// HistoryHandlers serves recent room messages over plain HTTP.
type HistoryHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.MessageStore, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		store: st,
		log:   logger,
	}
}

// GetRoomMessages returns the most recent messages of a room, oldest first.
// GET /rooms/:roomId/messages
func (h *HistoryHandlers) GetRoomMessages(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	if roomID == "" || len(roomID) > core.MaxRoomIDBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	limit := MaxHistoryPage
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxHistoryPage {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	messages, err := h.store.Recent(c.Request.Context(), roomID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: core.ErrHistoryUnavailable.Error()})
		return
	}

	c.JSON(http.StatusOK, messagesToProto(messages))
}
