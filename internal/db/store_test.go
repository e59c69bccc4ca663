package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MacJediWizard/aurospan/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.New(zerolog.NewTestWriter(t))

	database, err := New(ctx, DefaultConfig(filepath.Join(t.TempDir(), "data", "aurospan.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.Migrate(ctx))
	return database
}

func newTestApplication(name string, date time.Time) *models.PermitApplication {
	return models.NewPermitApplication(name, "Letter of Marque", name+" (signed)", date)
}

func TestMigrate(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	version, err := database.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Re-running is a no-op.
	require.NoError(t, database.Migrate(ctx))
	version, err = database.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestCurrentVersion_BeforeMigrate(t *testing.T) {
	ctx := context.Background()
	database, err := New(ctx, DefaultConfig(filepath.Join(t.TempDir(), "fresh.db")), zerolog.Nop())
	require.NoError(t, err)
	defer database.Close()

	version, err := database.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestGetMigrations(t *testing.T) {
	migrations, err := GetMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_permit_applications", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "permit_applications")

	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Contains(t, migrations[1].SQL, "application_date_offset")
}

func TestCreatePermitApplication(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2025, 4, 12, 10, 30, 0, 0, time.UTC)
	app := newTestApplication("Anne Bonny", date)
	app.Crew = "Revenge"
	app.SupportingFiles = []string{"aa_map.png", "bb_letter.pdf"}

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, database.CreatePermitApplication(ctx, app))
	assert.Positive(t, app.ID)
	assert.True(t, app.SubmittedAt.After(before))

	got, err := database.GetPermitApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anne Bonny", got.FullName)
	assert.Equal(t, "Revenge", got.Crew)
	assert.Equal(t, "", got.Alias)
	assert.Equal(t, []string{"aa_map.png", "bb_letter.pdf"}, got.SupportingFiles)
	assert.True(t, got.ApplicationDate.Equal(date))
	assert.WithinDuration(t, app.SubmittedAt, got.SubmittedAt, time.Millisecond)
}

func TestCreatePermitApplication_KeepsDateOffset(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	kolkata := time.FixedZone("", 5*3600+1800)
	date := time.Date(2024, 1, 15, 10, 30, 0, 0, kolkata)
	app := newTestApplication("Mary Read", date)
	require.NoError(t, database.CreatePermitApplication(ctx, app))

	var stored string
	var offset int
	err := database.Pool.QueryRowContext(ctx,
		"SELECT application_date, application_date_offset FROM permit_applications WHERE id = ?", app.ID,
	).Scan(&stored, &offset)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T05:00:00.000000Z", stored)
	assert.Equal(t, 5*3600+1800, offset)

	got, err := database.GetPermitApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.ApplicationDate.Equal(date))
	assert.Equal(t, "2024-01-15 10:30 +05:30", got.ApplicationDate.Format("2006-01-02 15:04 -07:00"))
}

func TestCreatePermitApplication_IDsIncrease(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	first := newTestApplication("Calico Jack", time.Now())
	second := newTestApplication("Mary Read", time.Now())
	require.NoError(t, database.CreatePermitApplication(ctx, first))
	require.NoError(t, database.CreatePermitApplication(ctx, second))
	assert.Greater(t, second.ID, first.ID)
}

func TestCreatePermitApplication_MissingRequired(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	app := newTestApplication("", time.Now())
	err := database.CreatePermitApplication(ctx, app)
	require.Error(t, err)

	n, err := database.CountPermitApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCreatePermitApplication_NoFilesStoresNull(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	app := newTestApplication("Blackbeard", time.Now())
	require.NoError(t, database.CreatePermitApplication(ctx, app))

	var isNull bool
	err := database.Pool.QueryRowContext(ctx,
		"SELECT supporting_files IS NULL FROM permit_applications WHERE id = ?", app.ID,
	).Scan(&isNull)
	require.NoError(t, err)
	assert.True(t, isNull)

	got, err := database.GetPermitApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SupportingFiles)
	assert.Empty(t, got.SupportingFiles)
}

func TestGetPermitApplication_NotFound(t *testing.T) {
	database := setupTestDB(t)

	_, err := database.GetPermitApplication(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPermitApplication_MalformedSupportingFiles(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	app := newTestApplication("Stede Bonnet", time.Now())
	require.NoError(t, database.CreatePermitApplication(ctx, app))

	_, err := database.Pool.ExecContext(ctx,
		"UPDATE permit_applications SET supporting_files = ? WHERE id = ?", "{not json", app.ID)
	require.NoError(t, err)

	got, err := database.GetPermitApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SupportingFiles)
	assert.Empty(t, got.SupportingFiles)
}

func TestListPermitApplications_OrderedByApplicationDate(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	oldest := newTestApplication("oldest", base)
	newest := newTestApplication("newest", base.Add(72*time.Hour))
	middle := newTestApplication("middle", base.Add(24*time.Hour))

	// Insertion order deliberately differs from date order.
	for _, app := range []*models.PermitApplication{middle, oldest, newest} {
		require.NoError(t, database.CreatePermitApplication(ctx, app))
	}

	apps, err := database.ListPermitApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "newest", apps[0].FullName)
	assert.Equal(t, "middle", apps[1].FullName)
	assert.Equal(t, "oldest", apps[2].FullName)
}

func TestListPermitApplications_OffsetDatesSortByInstant(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	// 09:00 at +05:00 is 04:00 UTC, earlier than 06:00 UTC.
	east := newTestApplication("east", time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("", 5*3600)))
	utc := newTestApplication("utc", time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, database.CreatePermitApplication(ctx, east))
	require.NoError(t, database.CreatePermitApplication(ctx, utc))

	apps, err := database.ListPermitApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "utc", apps[0].FullName)
	assert.Equal(t, "east", apps[1].FullName)

	assert.Equal(t, time.UTC, apps[0].ApplicationDate.Location())
	_, offset := apps[1].ApplicationDate.Zone()
	assert.Equal(t, 5*3600, offset)
	assert.Equal(t, 9, apps[1].ApplicationDate.Hour())
}

func TestListPermitApplications_Empty(t *testing.T) {
	database := setupTestDB(t)

	apps, err := database.ListPermitApplications(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}

func TestCreatePermitApplication_Concurrent(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- database.CreatePermitApplication(ctx, newTestApplication("crew", time.Now()))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	count, err := database.CountPermitApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestHealth(t *testing.T) {
	database := setupTestDB(t)

	health := database.Health()
	assert.Contains(t, health, "open_conns")
	assert.Contains(t, health, "path")
	require.NoError(t, database.Ping(context.Background()))
}
