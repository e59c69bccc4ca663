package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/MacJediWizard/aurospan/internal/uploads"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UploadsHandler serves stored permit attachments.
type UploadsHandler struct {
	store  uploads.Store
	logger zerolog.Logger
}

// NewUploadsHandler creates a new UploadsHandler.
func NewUploadsHandler(store uploads.Store, logger zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		store:  store,
		logger: logger.With().Str("component", "uploads_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the attachment download route.
func (h *UploadsHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/uploaded_permit_files/:name", h.Get)
}

// Get streams one stored attachment. Raster images and PDFs display inline
// and everything else downloads.
// GET /uploaded_permit_files/:name
func (h *UploadsHandler) Get(c *gin.Context) {
	name := c.Param("name")
	if err := uploads.ValidateName(name); err != nil {
		renderError(c, http.StatusNotFound, "File not found")
		return
	}

	rc, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			renderError(c, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error().Err(err).Str("name", name).Msg("failed to open upload")
		renderError(c, http.StatusInternalServerError, "The file could not be read.")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "attachment"
	if (strings.HasPrefix(contentType, "image/") && contentType != "image/svg+xml") || contentType == "application/pdf" {
		disposition = "inline"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": name}),
	})
}
