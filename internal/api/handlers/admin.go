package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/db"
	"github.com/MacJediWizard/aurospan/internal/gameserver"
	"github.com/MacJediWizard/aurospan/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ApplicationReader defines the read operations the admin pages need.
type ApplicationReader interface {
	ListPermitApplications(ctx context.Context) ([]*models.PermitApplication, error)
	GetPermitApplication(ctx context.Context, id int64) (*models.PermitApplication, error)
	CountPermitApplications(ctx context.Context) (int, error)
}

// AdminHandler serves the application registry and the council dashboard.
type AdminHandler struct {
	store      ApplicationReader
	controller gameserver.Controller
	logger     zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store ApplicationReader, controller gameserver.Controller, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:      store,
		controller: controller,
		logger:     logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RegisterLoginRoutes registers routes open to any logged-in user. r must be
// guarded by middleware.LoginRequired.
func (h *AdminHandler) RegisterLoginRoutes(r gin.IRoutes) {
	r.GET("/admin", h.ListApplications)
	r.GET("/admin/app/:id", h.GetApplication)
}

// RegisterAdminRoutes registers routes that need an allowed guild role. r must
// be guarded by middleware.AdminRequired.
func (h *AdminHandler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/admin/dashboard", h.Dashboard)
	r.POST("/admin/server/start", h.StartServer)
	r.POST("/admin/server/stop", h.StopServer)
}

// ListApplications renders every application, newest application date first.
// GET /admin
func (h *AdminHandler) ListApplications(c *gin.Context) {
	apps, err := h.store.ListPermitApplications(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list permit applications")
		renderError(c, http.StatusInternalServerError, "The registry could not be read.")
		return
	}

	c.HTML(http.StatusOK, "admin.html", pageData(c, "Permit Registry", gin.H{
		"Applications": apps,
	}))
}

// GetApplication renders one application.
// GET /admin/app/:id
func (h *AdminHandler) GetApplication(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		renderError(c, http.StatusNotFound, "Application not found")
		return
	}

	app, err := h.store.GetPermitApplication(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			renderError(c, http.StatusNotFound, "Application not found")
			return
		}
		h.logger.Error().Err(err).Int64("application_id", id).Msg("failed to get permit application")
		renderError(c, http.StatusInternalServerError, "The registry could not be read.")
		return
	}

	c.HTML(http.StatusOK, "admin_application_detail.html", pageData(c, "Application #"+strconv.FormatInt(app.ID, 10), gin.H{
		"App": app,
	}))
}

// Dashboard renders the council dashboard.
// GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	count, err := h.store.CountPermitApplications(c.Request.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to count permit applications")
		count = 0
	}

	c.HTML(http.StatusOK, "admin_dashboard.html", pageData(c, "Council Dashboard", gin.H{
		"ApplicationCount": count,
	}))
}

// StartServer asks the game server controller to start.
// POST /admin/server/start
func (h *AdminHandler) StartServer(c *gin.Context) {
	h.control(c, gameserver.ActionStart, "Server started!", "Failed to start server.")
}

// StopServer asks the game server controller to stop.
// POST /admin/server/stop
func (h *AdminHandler) StopServer(c *gin.Context) {
	h.control(c, gameserver.ActionStop, "Server stopped!", "Failed to stop server.")
}

func (h *AdminHandler) control(c *gin.Context, action gameserver.Action, ok, failed string) {
	logger := h.logger.With().Str("action", string(action)).Logger()
	if user := middleware.GetUser(c); user != nil {
		logger = logger.With().Str("user_id", user.ID).Logger()
	}

	var err error
	switch action {
	case gameserver.ActionStart:
		err = h.controller.Start(c.Request.Context())
	case gameserver.ActionStop:
		err = h.controller.Stop(c.Request.Context())
	}

	if err != nil {
		logger.Error().Err(err).Msg("game server action failed")
		c.String(http.StatusInternalServerError, failed)
		return
	}

	logger.Info().Msg("game server action requested")
	c.String(http.StatusOK, ok)
}
