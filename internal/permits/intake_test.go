package permits

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MacJediWizard/aurospan/internal/db"
	"github.com/MacJediWizard/aurospan/internal/models"
	"github.com/MacJediWizard/aurospan/internal/notifications"
	"github.com/MacJediWizard/aurospan/internal/uploads"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storedNamePattern = regexp.MustCompile(`^[0-9a-f]{32}_`)

type fakeStore struct {
	mu   sync.Mutex
	err  error
	apps []*models.PermitApplication
}

func (f *fakeStore) CreatePermitApplication(_ context.Context, app *models.PermitApplication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	app.ID = int64(len(f.apps) + 1)
	app.SubmittedAt = time.Now().UTC()
	f.apps = append(f.apps, app)
	return nil
}

type recordingNotifier struct {
	got chan notifications.PermitSubmitted
}

func (n *recordingNotifier) NotifyPermitSubmitted(_ context.Context, data notifications.PermitSubmitted) {
	n.got <- data
}

type countingRecorder struct {
	mu          sync.Mutex
	results     map[string]int
	attachments int
}

func (c *countingRecorder) RecordSubmission(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]int{}
	}
	c.results[result]++
}

func (c *countingRecorder) RecordAttachment(int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachments++
}

// failingFiles wraps a store and fails Put after a number of successes.
type failingFiles struct {
	uploads.Store
	allow int
	puts  int
}

func (f *failingFiles) Put(ctx context.Context, name string, r io.Reader) error {
	f.puts++
	if f.puts > f.allow {
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, name, r)
}

func attachment(name, content string) Attachment {
	return Attachment{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func validSubmission() Submission {
	return Submission{
		FullName:           "Anne Bonny",
		Crew:               "Revenge",
		PermitType:         "Letter of Marque",
		ApplicantSignature: "A. Bonny",
		ApplicationDate:    "2025-04-01T10:30:00",
	}
}

func newTestService(t *testing.T) (*Service, *fakeStore, *uploads.LocalStore) {
	t.Helper()
	files, err := uploads.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := &fakeStore{}
	return NewService(store, files, Options{}, zerolog.Nop()), store, files
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSubmit_WithoutFiles(t *testing.T) {
	svc, store, files := newTestService(t)

	receipt, err := svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, int64(1), receipt.ID)
	assert.Equal(t, "Anne Bonny", receipt.FullName)
	assert.Equal(t, "Letter of Marque", receipt.PermitType)
	assert.Equal(t, "Revenge", receipt.Crew)
	assert.NotNil(t, receipt.SupportingFiles)
	assert.Empty(t, receipt.SupportingFiles)

	require.Len(t, store.apps, 1)
	assert.Equal(t, time.Date(2025, 4, 1, 10, 30, 0, 0, time.UTC), store.apps[0].ApplicationDate)
	assert.Empty(t, dirEntries(t, files.Dir()))
}

func TestSubmit_StoresFilesInOrder(t *testing.T) {
	svc, store, files := newTestService(t)

	sub := validSubmission()
	sub.Files = []Attachment{
		attachment("map.png", "png-bytes"),
		attachment("", "ignored"),
		attachment(`C:\Users\anne\letter.txt`, "hello"),
		attachment("../../etc/passwd", "nope"),
	}

	receipt, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, receipt.SupportingFiles, 3)

	assert.Regexp(t, storedNamePattern, receipt.SupportingFiles[0])
	assert.True(t, strings.HasSuffix(receipt.SupportingFiles[0], "_map.png"))
	assert.True(t, strings.HasSuffix(receipt.SupportingFiles[1], "_letter.txt"))
	assert.True(t, strings.HasSuffix(receipt.SupportingFiles[2], "_passwd"))
	assert.Equal(t, receipt.SupportingFiles, store.apps[0].SupportingFiles)

	data, err := os.ReadFile(filepath.Join(files.Dir(), receipt.SupportingFiles[1]))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Len(t, dirEntries(t, files.Dir()), 3)
}

func TestSubmit_SameFilenameTwice(t *testing.T) {
	svc, _, files := newTestService(t)

	sub := validSubmission()
	sub.Files = []Attachment{attachment("a.txt", "one"), attachment("a.txt", "two")}

	receipt, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, receipt.SupportingFiles, 2)
	assert.NotEqual(t, receipt.SupportingFiles[0], receipt.SupportingFiles[1])
	assert.Len(t, dirEntries(t, files.Dir()), 2)
}

func TestSubmit_AwkwardFilenames(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		suffix   string
	}{
		{"very long name", strings.Repeat("x", 240) + ".png", ".png"},
		{"embedded NUL", "a\x00b.png", "_ab.png"},
		{"windows path", `C:\dir\x.png`, "_x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, files := newTestService(t)
			sub := validSubmission()
			sub.Files = []Attachment{attachment(tt.filename, "PNGDATA")}

			receipt, err := svc.Submit(context.Background(), sub)
			require.NoError(t, err)
			require.Len(t, receipt.SupportingFiles, 1)

			stored := receipt.SupportingFiles[0]
			assert.Regexp(t, storedNamePattern, stored)
			assert.LessOrEqual(t, len(stored), 255)
			assert.True(t, strings.HasSuffix(stored, tt.suffix), "stored name %q", stored)
			assert.Equal(t, receipt.SupportingFiles, store.apps[0].SupportingFiles)

			data, err := os.ReadFile(filepath.Join(files.Dir(), stored))
			require.NoError(t, err)
			assert.Equal(t, "PNGDATA", string(data))
		})
	}
}

func TestSubmit_MissingRequiredField(t *testing.T) {
	tests := []struct {
		field string
		edit  func(*Submission)
	}{
		{"full_name", func(s *Submission) { s.FullName = "  " }},
		{"permit_type", func(s *Submission) { s.PermitType = "" }},
		{"applicant_signature", func(s *Submission) { s.ApplicantSignature = "" }},
		{"application_date", func(s *Submission) { s.ApplicationDate = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			svc, store, files := newTestService(t)
			sub := validSubmission()
			sub.Files = []Attachment{attachment("a.txt", "data")}
			tt.edit(&sub)

			_, err := svc.Submit(context.Background(), sub)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, store.apps)
			assert.Empty(t, dirEntries(t, files.Dir()), "no file may be written for an invalid submission")
		})
	}
}

func TestSubmit_InvalidDateWritesNothing(t *testing.T) {
	svc, store, files := newTestService(t)
	sub := validSubmission()
	sub.ApplicationDate = "next tuesday"
	sub.Files = []Attachment{attachment("a.txt", "data")}

	_, err := svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
	assert.Empty(t, store.apps)
	assert.Empty(t, dirEntries(t, files.Dir()))
}

func TestSubmit_Limits(t *testing.T) {
	files, err := uploads.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(&fakeStore{}, files, Options{MaxFileBytes: 4, MaxFiles: 2}, zerolog.Nop())

	t.Run("too many files", func(t *testing.T) {
		sub := validSubmission()
		sub.Files = []Attachment{attachment("a", "1"), attachment("b", "2"), attachment("c", "3")}
		_, err := svc.Submit(context.Background(), sub)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "supporting_files", verr.Field)
	})

	t.Run("declared size too large", func(t *testing.T) {
		sub := validSubmission()
		sub.Files = []Attachment{attachment("big", "12345")}
		_, err := svc.Submit(context.Background(), sub)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("stream larger than declared", func(t *testing.T) {
		sub := validSubmission()
		a := attachment("liar", "123456789")
		a.Size = 1
		sub.Files = []Attachment{attachment("ok", "12"), a}
		_, err := svc.Submit(context.Background(), sub)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, dirEntries(t, files.Dir()), "partial uploads must be removed")
	})
}

func TestSubmit_StorageFailureCleansUp(t *testing.T) {
	local, err := uploads.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	files := &failingFiles{Store: local, allow: 1}
	store := &fakeStore{}
	svc := NewService(store, files, Options{}, zerolog.Nop())

	sub := validSubmission()
	sub.Files = []Attachment{attachment("a.txt", "one"), attachment("b.txt", "two")}

	_, err = svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, store.apps)
	assert.Empty(t, dirEntries(t, local.Dir()))
}

func TestSubmit_InsertFailureCleansUp(t *testing.T) {
	svc, store, files := newTestService(t)
	store.err = errors.New("database is locked")

	sub := validSubmission()
	sub.Files = []Attachment{attachment("a.txt", "one")}

	_, err := svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, dirEntries(t, files.Dir()))
}

func TestSubmit_NotifiesAndRecords(t *testing.T) {
	svc, _, _ := newTestService(t)
	notifier := &recordingNotifier{got: make(chan notifications.PermitSubmitted, 1)}
	recorder := &countingRecorder{}
	svc.SetNotifier(notifier)
	svc.SetRecorder(recorder)

	sub := validSubmission()
	sub.Files = []Attachment{attachment("a.txt", "one")}
	receipt, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)

	select {
	case data := <-notifier.got:
		assert.Equal(t, receipt.ID, data.ID)
		assert.Equal(t, 1, data.Attachments)
		assert.Equal(t, "Revenge", data.Crew)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification")
	}
	svc.Wait()

	bad := validSubmission()
	bad.FullName = ""
	_, _ = svc.Submit(context.Background(), bad)

	assert.Equal(t, 1, recorder.results["accepted"])
	assert.Equal(t, 1, recorder.results["invalid"])
	assert.Equal(t, 1, recorder.attachments)
}

func TestSubmit_AgainstDatabase(t *testing.T) {
	ctx := context.Background()
	database, err := db.New(ctx, db.DefaultConfig(filepath.Join(t.TempDir(), "test.db")), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(ctx))

	files, err := uploads.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(database, files, Options{}, zerolog.Nop())

	older := validSubmission()
	older.ApplicationDate = "2024-01-01"
	newer := validSubmission()
	newer.ApplicationDate = "2025-06-01 08:00:00+02:00"
	newer.Files = []Attachment{attachment("сертификат.pdf", "pdf")}

	_, err = svc.Submit(ctx, older)
	require.NoError(t, err)
	second, err := svc.Submit(ctx, newer)
	require.NoError(t, err)

	apps, err := database.ListPermitApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, second.ID, apps[0].ID)
	assert.True(t, apps[0].ApplicationDate.Equal(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-01 08:00 +02:00", apps[0].ApplicationDate.Format("2006-01-02 15:04 -07:00"))
	assert.Equal(t, second.SupportingFiles, apps[0].SupportingFiles)
	assert.Empty(t, apps[1].SupportingFiles)

	got, err := database.GetPermitApplication(ctx, second.ID)
	require.NoError(t, err)
	rc, err := files.Open(ctx, got.SupportingFiles[0])
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf", buf.String())
}
