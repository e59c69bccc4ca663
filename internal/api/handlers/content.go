package handlers

import (
	"errors"
	"net/http"

	"github.com/MacJediWizard/aurospan/internal/content"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Catalog defines the read-only lore content served by ContentHandler.
type Catalog interface {
	Laws() []content.Law
	Law(id string) (content.Law, error)
	Permits() []content.Permit
	PermitNames() []string
	Documents() []content.Document
	Document(id string) (content.Document, error)
}

// ContentHandler serves the public lore pages and the application form.
type ContentHandler struct {
	catalog  Catalog
	maxFiles int
	logger   zerolog.Logger
}

// NewContentHandler creates a new ContentHandler. maxFiles is shown on the
// application form.
func NewContentHandler(catalog Catalog, maxFiles int, logger zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		catalog:  catalog,
		maxFiles: maxFiles,
		logger:   logger.With().Str("component", "content_handler").Logger(),
	}
}

// RegisterPublicRoutes registers content routes that don't require authentication.
func (h *ContentHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.GET("/laws", h.ListLaws)
	r.GET("/laws/:id", h.GetLaw)
	r.GET("/permits", h.ListPermits)
	r.GET("/permit", h.PermitForm)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/:id", h.GetDocument)
}

// Index renders the landing page.
// GET /
func (h *ContentHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData(c, "", nil))
}

// ListLaws renders every law.
// GET /laws
func (h *ContentHandler) ListLaws(c *gin.Context) {
	c.HTML(http.StatusOK, "laws.html", pageData(c, "Laws", gin.H{
		"Laws": h.catalog.Laws(),
	}))
}

// GetLaw renders one law.
// GET /laws/:id
func (h *ContentHandler) GetLaw(c *gin.Context) {
	law, err := h.catalog.Law(c.Param("id"))
	if err != nil {
		h.notFound(c, err, "Law not found")
		return
	}
	c.HTML(http.StatusOK, "law_detail.html", pageData(c, law.Title, gin.H{
		"Law": law,
	}))
}

// ListPermits renders the permit catalog.
// GET /permits
func (h *ContentHandler) ListPermits(c *gin.Context) {
	c.HTML(http.StatusOK, "permits.html", pageData(c, "Permits", gin.H{
		"Permits": h.catalog.Permits(),
	}))
}

// PermitForm renders the permit application form.
// GET /permit
func (h *ContentHandler) PermitForm(c *gin.Context) {
	c.HTML(http.StatusOK, "permit.html", pageData(c, "Apply for a Permit", gin.H{
		"PermitNames": h.catalog.PermitNames(),
		"MaxFiles":    h.maxFiles,
	}))
}

// ListDocuments renders every treaty and charter.
// GET /documents
func (h *ContentHandler) ListDocuments(c *gin.Context) {
	c.HTML(http.StatusOK, "documents.html", pageData(c, "Documents", gin.H{
		"Documents": h.catalog.Documents(),
	}))
}

// GetDocument renders one document.
// GET /documents/:id
func (h *ContentHandler) GetDocument(c *gin.Context) {
	doc, err := h.catalog.Document(c.Param("id"))
	if err != nil {
		h.notFound(c, err, "Document not found")
		return
	}
	ratifiedAt, ratified := doc.RatificationDate()
	c.HTML(http.StatusOK, "document_detail.html", pageData(c, doc.Title, gin.H{
		"Document":   doc,
		"Ratified":   ratified,
		"RatifiedAt": ratifiedAt,
	}))
}

func (h *ContentHandler) notFound(c *gin.Context, err error, message string) {
	if !errors.Is(err, content.ErrNotFound) {
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("content lookup failed")
		renderError(c, http.StatusInternalServerError, "The archive could not be read.")
		return
	}
	renderError(c, http.StatusNotFound, message)
}
