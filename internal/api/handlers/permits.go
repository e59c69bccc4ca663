package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"reflect"

	"github.com/MacJediWizard/aurospan/internal/permits"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartMemory is how much of a multipart body is held in memory before
// file parts spill to temporary files.
const multipartMemory = 8 << 20

// PermitForm is the submitted application form.
type PermitForm struct {
	FullName           string                  `form:"full_name" binding:"required"`
	Alias              string                  `form:"alias"`
	Crew               string                  `form:"crew"`
	ContactAddress     string                  `form:"contact_address"`
	PreferredContact   string                  `form:"preferred_contact"`
	OtherCorrText      string                  `form:"other_corr_text"`
	PermitType         string                  `form:"permit_type" binding:"required"`
	OtherPermitText    string                  `form:"other_permit_text"`
	PermitDetails      string                  `form:"permit_details"`
	ApplicantSignature string                  `form:"applicant_signature" binding:"required"`
	ApplicationDate    string                  `form:"application_date" binding:"required"`
	SupportingFiles    []*multipart.FileHeader `form:"supporting_files"`
}

// Submission converts the bound form into an intake submission.
func (f *PermitForm) Submission() permits.Submission {
	sub := permits.Submission{
		FullName:           f.FullName,
		Alias:              f.Alias,
		Crew:               f.Crew,
		ContactAddress:     f.ContactAddress,
		PreferredContact:   f.PreferredContact,
		OtherCorrText:      f.OtherCorrText,
		PermitType:         f.PermitType,
		OtherPermitText:    f.OtherPermitText,
		PermitDetails:      f.PermitDetails,
		ApplicantSignature: f.ApplicantSignature,
		ApplicationDate:    f.ApplicationDate,
	}
	for _, fh := range f.SupportingFiles {
		sub.Files = append(sub.Files, permits.AttachmentFromHeader(fh))
	}
	return sub
}

// formFieldError maps a binding failure to the form field that caused it.
// It returns nil when err is not a field validation failure.
func formFieldError(err error) *permits.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	fe := verrs[0]
	name := fe.Field()
	if field, ok := reflect.TypeOf(PermitForm{}).FieldByName(fe.StructField()); ok {
		if tag := field.Tag.Get("form"); tag != "" {
			name = tag
		}
	}
	msg := "is invalid"
	if fe.Tag() == "required" {
		msg = "is required"
	}
	return &permits.ValidationError{Field: name, Message: msg}
}

// PermitIntake accepts permit applications.
type PermitIntake interface {
	Submit(ctx context.Context, sub permits.Submission) (*permits.Receipt, error)
}

// PermitHandler handles permit application submissions.
type PermitHandler struct {
	intake PermitIntake
	logger zerolog.Logger
}

// NewPermitHandler creates a new PermitHandler.
func NewPermitHandler(intake PermitIntake, logger zerolog.Logger) *PermitHandler {
	return &PermitHandler{
		intake: intake,
		logger: logger.With().Str("component", "permit_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the submission route. No login is required.
func (h *PermitHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.POST("/submit-permit", h.Submit)
}

// Submit validates and records one permit application.
// POST /submit-permit
func (h *PermitHandler) Submit(c *gin.Context) {
	err := c.Request.ParseMultipartForm(multipartMemory)
	if c.Request.MultipartForm != nil {
		defer func() { _ = c.Request.MultipartForm.RemoveAll() }()
	}
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn().Int64("limit", maxErr.Limit).Msg("submission body too large")
			renderError(c, http.StatusRequestEntityTooLarge, "The submission is too large.")
			return
		}
		h.logger.Warn().Err(err).Msg("failed to parse submission form")
		renderError(c, http.StatusBadRequest, "The submission could not be read.")
		return
	}

	var form PermitForm
	if err := c.ShouldBind(&form); err != nil {
		if fieldErr := formFieldError(err); fieldErr != nil {
			renderError(c, http.StatusBadRequest, fieldErr.Error())
			return
		}
		h.logger.Warn().Err(err).Msg("failed to bind submission form")
		renderError(c, http.StatusBadRequest, "The submission could not be read.")
		return
	}

	receipt, err := h.intake.Submit(c.Request.Context(), form.Submission())
	if err != nil {
		var validationErr *permits.ValidationError
		switch {
		case errors.As(err, &validationErr):
			renderError(c, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, permits.ErrInvalidDateFormat):
			renderError(c, http.StatusBadRequest, "Invalid date format")
		default:
			h.logger.Error().Err(err).Msg("failed to record permit application")
			renderError(c, http.StatusInternalServerError, "The registry could not record your application. Please try again.")
		}
		return
	}

	c.HTML(http.StatusOK, "submission_success.html", pageData(c, "Application Received", gin.H{
		"Receipt": receipt,
	}))
}
