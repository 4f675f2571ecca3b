package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskapp/taskstream/internal/core/domain"
	"github.com/taskapp/taskstream/internal/core/ports"
)

type UserHandler struct {
	users ports.UserRepository
}

func NewUserHandler(users ports.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// List returns every registered profile, for the assignee picker.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}  domain.Profile
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	if _, err := ctxUsername(c); err != nil {
		return err
	}

	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}

	profiles := make([]*domain.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return c.JSON(http.StatusOK, profiles)
}
