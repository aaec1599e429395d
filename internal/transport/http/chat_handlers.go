package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/store"
)

// ChatHandlers provides HTTP handlers for rooms and message history.
type ChatHandlers struct {
	store        store.Store
	resolver     *core.Resolver
	historyLimit int
	log          *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(st store.Store, resolver *core.Resolver, historyLimit int, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		store:        st,
		resolver:     resolver,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// HistoryResponse is the message history of a room.
type HistoryResponse struct {
	ChatListData []proto.Chat `json:"chatListData"`
	ProfileIndex int          `json:"profileIndex"`
}

// RoomExistsRequest names the two participants of a room.
type RoomExistsRequest struct {
	UserList []string `json:"user_list" binding:"required"`
}

// RoomExistsResponse reports whether the pair already has a room.
type RoomExistsResponse struct {
	Exists bool   `json:"exists"`
	RoomID string `json:"room_id,omitempty"`
}

// ListRooms returns the room list of a user, most recent first.
// GET /chat/rooms/:userId
func (h *ChatHandlers) ListRooms(c *gin.Context) {
	userID := c.Param("userId")

	rooms, err := h.store.ListRoomSummaries(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	c.JSON(http.StatusOK, roomSummaries(rooms))
}

// History returns the most recent messages of a room in chronological order,
// along with the counterpart's profile image index.
// GET /chat/:roomId/:otherUserId
func (h *ChatHandlers) History(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")
	otherUserID := c.Param("otherUserId")

	messages, err := h.store.ListMessages(ctx, roomID, h.historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	profileIndex := 0
	user, err := h.store.GetUser(ctx, otherUserID)
	switch {
	case err == nil:
		profileIndex = user.ProfileImageIndex
	case errors.Is(err, store.ErrNotFound):
	default:
		h.log.Error().Err(err).Str("user_id", otherUserID).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	chats := make([]proto.Chat, 0, len(messages))
	for _, msg := range messages {
		chats = append(chats, chatFromMessage(msg))
	}

	c.JSON(http.StatusOK, HistoryResponse{ChatListData: chats, ProfileIndex: profileIndex})
}

// RoomExists reports whether two users already share a room.
// POST /room/exists
func (h *ChatHandlers) RoomExists(c *gin.Context) {
	var req RoomExistsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.UserList) != 2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_list must name exactly two users"})
		return
	}

	room, found, err := h.resolver.Find(c.Request.Context(), req.UserList[0], req.UserList[1])
	if err != nil {
		if errors.Is(err, core.ErrSameParticipant) || errors.Is(err, core.ErrEmptyParticipant) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Strs("user_list", req.UserList).Msg("failed to find room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	if !found {
		c.JSON(http.StatusOK, RoomExistsResponse{Exists: false})
		return
	}
	c.JSON(http.StatusOK, RoomExistsResponse{Exists: true, RoomID: room.ID})
}
