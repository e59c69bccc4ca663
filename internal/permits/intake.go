// Package permits handles the intake of permit applications: validation,
// attachment storage, and persistence.
package permits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/aurospan/internal/metrics"
	"github.com/MacJediWizard/aurospan/internal/models"
	"github.com/MacJediWizard/aurospan/internal/notifications"
	"github.com/MacJediWizard/aurospan/internal/uploads"
	"github.com/rs/zerolog"
)

// Default intake limits.
const (
	DefaultMaxFileBytes = 10 << 20
	DefaultMaxFiles     = 10
)

// notifyTimeout bounds the background staff notification.
const notifyTimeout = 10 * time.Second

var (
	// ErrInvalidDateFormat is returned when application_date is not ISO-8601.
	ErrInvalidDateFormat = errors.New("invalid date format")
	// ErrStorage is returned when an attachment or the application row could not be stored.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports a missing or unacceptable form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ApplicationStore persists permit applications.
type ApplicationStore interface {
	CreatePermitApplication(ctx context.Context, app *models.PermitApplication) error
}

// Notifier announces accepted submissions.
type Notifier interface {
	NotifyPermitSubmitted(ctx context.Context, data notifications.PermitSubmitted)
}

// Recorder observes intake outcomes.
type Recorder interface {
	RecordSubmission(result string)
	RecordAttachment(size int64)
}

// Attachment is one uploaded supporting file.
type Attachment struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// AttachmentFromHeader adapts a parsed multipart file.
func AttachmentFromHeader(fh *multipart.FileHeader) Attachment {
	return Attachment{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Submission is the raw form input of one permit application.
type Submission struct {
	FullName           string
	Alias              string
	Crew               string
	ContactAddress     string
	PreferredContact   string
	OtherCorrText      string
	PermitType         string
	OtherPermitText    string
	PermitDetails      string
	ApplicantSignature string
	ApplicationDate    string
	Files              []Attachment
}

// Receipt confirms an accepted submission.
type Receipt struct {
	ID              int64
	FullName        string
	PermitType      string
	Crew            string
	SupportingFiles []string
	SubmittedAt     time.Time
}

// Options configures intake limits.
type Options struct {
	MaxFileBytes int64
	MaxFiles     int
}

// Service validates and persists permit applications.
type Service struct {
	store    ApplicationStore
	files    uploads.Store
	opts     Options
	notifier Notifier
	recorder Recorder
	pending  sync.WaitGroup
	logger   zerolog.Logger
}

// NewService creates an intake service. Zero limits use the defaults.
func NewService(store ApplicationStore, files uploads.Store, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	return &Service{
		store:  store,
		files:  files,
		opts:   opts,
		logger: logger.With().Str("component", "permit_intake").Logger(),
	}
}

// SetNotifier sets the staff notifier. A nil notifier disables notifications.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetRecorder sets the outcome recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Submit validates the submission, stores its attachments, and inserts the
// application row. No file is written unless every field validates. Files
// stored for a submission that then fails are removed.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	app, attachments, err := s.validate(sub)
	if err != nil {
		s.record(metrics.SubmissionInvalid)
		return nil, err
	}

	stored := make([]string, 0, len(attachments))
	for _, a := range attachments {
		name, err := s.storeAttachment(ctx, a)
		if err != nil {
			s.cleanup(stored)
			var verr *ValidationError
			if errors.As(err, &verr) {
				s.record(metrics.SubmissionInvalid)
			} else {
				s.record(metrics.SubmissionFailed)
			}
			return nil, err
		}
		stored = append(stored, name)
	}
	app.SupportingFiles = stored

	if err := s.store.CreatePermitApplication(ctx, app); err != nil {
		s.cleanup(stored)
		s.record(metrics.SubmissionFailed)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.record(metrics.SubmissionAccepted)
	s.logger.Info().
		Int64("application_id", app.ID).
		Str("permit_type", app.PermitType).
		Int("attachments", len(stored)).
		Msg("permit application recorded")

	s.notify(ctx, app)

	return &Receipt{
		ID:              app.ID,
		FullName:        app.FullName,
		PermitType:      app.PermitType,
		Crew:            app.Crew,
		SupportingFiles: stored,
		SubmittedAt:     app.SubmittedAt,
	}, nil
}

// validate checks required fields, the date, and attachment limits, and
// returns the application to insert along with the named attachments.
func (s *Service) validate(sub Submission) (*models.PermitApplication, []Attachment, error) {
	required := []struct {
		field string
		value string
	}{
		{"full_name", sub.FullName},
		{"permit_type", sub.PermitType},
		{"applicant_signature", sub.ApplicantSignature},
		{"application_date", sub.ApplicationDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, nil, &ValidationError{Field: r.field, Message: "is required"}
		}
	}

	date, err := ParseApplicationDate(sub.ApplicationDate)
	if err != nil {
		return nil, nil, err
	}

	var attachments []Attachment
	for _, a := range sub.Files {
		if uploads.BaseName(a.Filename) == "" {
			continue
		}
		if a.Size > s.opts.MaxFileBytes {
			return nil, nil, &ValidationError{
				Field:   "supporting_files",
				Message: fmt.Sprintf("%s exceeds the %d byte limit", uploads.BaseName(a.Filename), s.opts.MaxFileBytes),
			}
		}
		attachments = append(attachments, a)
	}
	if len(attachments) > s.opts.MaxFiles {
		return nil, nil, &ValidationError{
			Field:   "supporting_files",
			Message: fmt.Sprintf("at most %d files may be attached", s.opts.MaxFiles),
		}
	}

	app := models.NewPermitApplication(
		strings.TrimSpace(sub.FullName),
		strings.TrimSpace(sub.PermitType),
		strings.TrimSpace(sub.ApplicantSignature),
		date,
	)
	app.Alias = strings.TrimSpace(sub.Alias)
	app.Crew = strings.TrimSpace(sub.Crew)
	app.ContactAddress = strings.TrimSpace(sub.ContactAddress)
	app.PreferredContact = strings.TrimSpace(sub.PreferredContact)
	app.OtherCorrText = strings.TrimSpace(sub.OtherCorrText)
	app.OtherPermitText = strings.TrimSpace(sub.OtherPermitText)
	app.PermitDetails = strings.TrimSpace(sub.PermitDetails)

	return app, attachments, nil
}

// storeAttachment writes one attachment under a fresh collision-resistant name.
func (s *Service) storeAttachment(ctx context.Context, a Attachment) (string, error) {
	name := uploads.StoredName(a.Filename)

	rc, err := a.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrStorage, a.Filename, err)
	}
	defer rc.Close()

	// Read one byte past the limit so oversized streams can be detected.
	counter := &countingReader{r: io.LimitReader(rc, s.opts.MaxFileBytes+1)}
	if err := s.files.Put(ctx, name, counter); err != nil {
		return "", fmt.Errorf("%w: store %s: %w", ErrStorage, name, err)
	}

	if counter.n > s.opts.MaxFileBytes {
		s.cleanup([]string{name})
		return "", &ValidationError{
			Field:   "supporting_files",
			Message: fmt.Sprintf("%s exceeds the %d byte limit", uploads.BaseName(a.Filename), s.opts.MaxFileBytes),
		}
	}

	if s.recorder != nil {
		s.recorder.RecordAttachment(counter.n)
	}
	return name, nil
}

// cleanup removes stored files on a best-effort basis.
func (s *Service) cleanup(names []string) {
	// The request context may already be canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range names {
		if err := s.files.Delete(ctx, name); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to remove orphaned upload")
		}
	}
}

func (s *Service) notify(ctx context.Context, app *models.PermitApplication) {
	if s.notifier == nil {
		return
	}

	data := notifications.PermitSubmitted{
		ID:          app.ID,
		FullName:    app.FullName,
		Alias:       app.Alias,
		Crew:        app.Crew,
		PermitType:  app.PermitType,
		Attachments: len(app.SupportingFiles),
		SubmittedAt: app.SubmittedAt,
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		s.notifier.NotifyPermitSubmitted(nctx, data)
	}()
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordSubmission(result)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
