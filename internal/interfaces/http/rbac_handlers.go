package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

type RolesHandler struct {
	service *application.RoleService
	logger  ports.Logger
}

func NewRolesHandler(service *application.RoleService, logger ports.Logger) *RolesHandler {
	return &RolesHandler{service: service, logger: logger}
}

func (h *RolesHandler) List(c echo.Context) error {
	roles, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, roles)
}

func (h *RolesHandler) Get(c echo.Context) error {
	role, err := h.service.Get(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, role)
}

func (h *RolesHandler) Matrix(c echo.Context) error {
	matrix, err := h.service.Matrix(c.Request().Context(), adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, matrix)
}

func (h *RolesHandler) Create(c echo.Context) error {
	var req struct {
		Name        string   `json:"name"`
		DisplayName string   `json:"display_name"`
		Description string   `json:"description"`
		Permissions []string `json:"permissions"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	role, err := h.service.Create(c.Request().Context(), adaptermiddleware.ActorFrom(c), application.CreateRoleInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, role)
}

func (h *RolesHandler) Update(c echo.Context) error {
	var req struct {
		DisplayName *string `json:"display_name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	role, err := h.service.Update(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), application.UpdateRoleInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, role)
}

func (h *RolesHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *RolesHandler) Permissions(c echo.Context) error {
	keys, err := h.service.Permissions(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string][]string{"permissions": keys})
}

func (h *RolesHandler) SetPermissions(c echo.Context) error {
	var req struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	keys, err := h.service.SetPermissions(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), req.Permissions)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string][]string{"permissions": keys})
}

type UsersHandler struct {
	service *application.UserService
	logger  ports.Logger
}

func NewUsersHandler(service *application.UserService, logger ports.Logger) *UsersHandler {
	return &UsersHandler{service: service, logger: logger}
}

func (h *UsersHandler) List(c echo.Context) error {
	page, err := bindPage(c)
	if err != nil {
		return invalidPayload(c)
	}
	var activeOnly bool
	if err := echo.QueryParamsBinder(c).Bool("active_only", &activeOnly).BindError(); err != nil {
		return invalidPayload(c)
	}
	filter := domain.UserFilter{
		RoleID:     c.QueryParam("role_id"),
		ActiveOnly: activeOnly,
		Search:     c.QueryParam("search"),
	}
	users, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c), filter, page.Page, page.PageSize)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, users)
}

func (h *UsersHandler) Get(c echo.Context) error {
	user, err := h.service.Get(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

func (h *UsersHandler) Create(c echo.Context) error {
	var req struct {
		Email  string `json:"email"`
		Name   string `json:"name"`
		RoleID string `json:"role_id"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	user, err := h.service.Create(c.Request().Context(), adaptermiddleware.ActorFrom(c), application.CreateUserInput{
		Email:  req.Email,
		Name:   req.Name,
		RoleID: req.RoleID,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, user)
}

func (h *UsersHandler) Update(c echo.Context) error {
	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		RoleID   *string `json:"role_id"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	user, err := h.service.Update(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), domain.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		RoleID:   req.RoleID,
		IsActive: req.IsActive,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}

// Deactivate is the DELETE verb; users are never removed.
func (h *UsersHandler) Deactivate(c echo.Context) error {
	user, err := h.service.Deactivate(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, user)
}
