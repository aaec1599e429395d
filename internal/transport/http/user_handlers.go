package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/store"
)

// UserHandlers provides HTTP handlers for nickname registration and lookup.
type UserHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// RegisterNicknameRequest represents the nickname registration body.
type RegisterNicknameRequest struct {
	UserID            string `json:"user_id" binding:"required"`
	UserNickname      string `json:"user_nickname" binding:"required,max=64"`
	ProfileImageIndex *int   `json:"profile_image_index" binding:"required,min=0"`
}

// NicknameResponse represents a user's public profile.
type NicknameResponse struct {
	UserID            string `json:"user_id"`
	UserNickname      string `json:"user_nickname"`
	ProfileImageIndex int    `json:"profile_image_index"`
}

// GetNickname returns the profile of a user, or a placeholder for unknown users.
// GET /nickname/:userId
func (h *UserHandlers) GetNickname(c *gin.Context) {
	userID := c.Param("userId")

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, NicknameResponse{UserID: userID, UserNickname: core.UnknownDisplayName})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to get user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	c.JSON(http.StatusOK, nicknameResponse(user))
}

// RegisterNickname creates or overwrites a user's nickname and profile image.
// POST /register/nickname
func (h *UserHandlers) RegisterNickname(c *gin.Context) {
	var req RegisterNicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register nickname request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id, user_nickname and profile_image_index are required"})
		return
	}

	user := &store.User{
		ID:                strings.TrimSpace(req.UserID),
		DisplayName:       strings.TrimSpace(req.UserNickname),
		ProfileImageIndex: *req.ProfileImageIndex,
	}
	if user.ID == "" || user.DisplayName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id and user_nickname must not be blank"})
		return
	}

	if err := h.store.UpsertUser(c.Request.Context(), user); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to register nickname")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternal})
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("nickname registered")
	c.JSON(http.StatusCreated, nicknameResponse(user))
}

func nicknameResponse(u *store.User) NicknameResponse {
	return NicknameResponse{
		UserID:            u.ID,
		UserNickname:      u.DisplayName,
		ProfileImageIndex: u.ProfileImageIndex,
	}
}
