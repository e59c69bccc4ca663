package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/aurospan/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const permitApplicationColumns = `
	id, full_name, alias, crew, contact_address, preferred_contact, other_corr_text,
	permit_type, other_permit_text, permit_details, supporting_files,
	applicant_signature, application_date, application_date_offset, submitted_at`

// CreatePermitApplication inserts a new application and sets its ID and
// SubmittedAt from the stored row.
func (db *DB) CreatePermitApplication(ctx context.Context, app *models.PermitApplication) error {
	filesJSON, err := app.SupportingFilesJSON()
	if err != nil {
		return fmt.Errorf("marshal supporting files: %w", err)
	}
	var files sql.NullString
	if filesJSON != nil {
		files = sql.NullString{String: string(filesJSON), Valid: true}
	}

	submittedAt := time.Now().UTC()

	res, err := db.Pool.ExecContext(ctx, `
		INSERT INTO permit_applications (
			full_name, alias, crew, contact_address, preferred_contact, other_corr_text,
			permit_type, other_permit_text, permit_details, supporting_files,
			applicant_signature, application_date, application_date_offset, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		requiredString(app.FullName),
		nullString(app.Alias),
		nullString(app.Crew),
		nullString(app.ContactAddress),
		nullString(app.PreferredContact),
		nullString(app.OtherCorrText),
		requiredString(app.PermitType),
		nullString(app.OtherPermitText),
		nullString(app.PermitDetails),
		files,
		requiredString(app.ApplicantSignature),
		nullTime(app.ApplicationDate),
		zoneOffset(app.ApplicationDate),
		submittedAt.Format(models.TimestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert permit application: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get permit application id: %w", err)
	}

	app.ID = id
	app.SubmittedAt = submittedAt
	if app.SupportingFiles == nil {
		app.SupportingFiles = []string{}
	}
	return nil
}

// ListPermitApplications returns all applications, most recent application
// date first.
func (db *DB) ListPermitApplications(ctx context.Context) ([]*models.PermitApplication, error) {
	rows, err := db.Pool.QueryContext(ctx, `
		SELECT `+permitApplicationColumns+`
		FROM permit_applications
		ORDER BY application_date DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list permit applications: %w", err)
	}
	defer rows.Close()

	apps := []*models.PermitApplication{}
	for rows.Next() {
		app, err := db.scanPermitApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permit applications: %w", err)
	}

	return apps, nil
}

// GetPermitApplication returns the application with the given ID, or
// ErrNotFound.
func (db *DB) GetPermitApplication(ctx context.Context, id int64) (*models.PermitApplication, error) {
	row := db.Pool.QueryRowContext(ctx, `
		SELECT `+permitApplicationColumns+`
		FROM permit_applications
		WHERE id = ?
	`, id)

	app, err := db.scanPermitApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return app, nil
}

// CountPermitApplications returns the number of stored applications.
func (db *DB) CountPermitApplications(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRowContext(ctx, "SELECT COUNT(*) FROM permit_applications").Scan(&n); err != nil {
		return 0, fmt.Errorf("count permit applications: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanPermitApplication(row rowScanner) (*models.PermitApplication, error) {
	var (
		app                                        models.PermitApplication
		alias, crew, contact, preferred, otherCorr sql.NullString
		otherPermit, details, files                sql.NullString
		applicationDate, submittedAt               string
		applicationOffset                          int
	)

	err := row.Scan(
		&app.ID, &app.FullName, &alias, &crew, &contact, &preferred, &otherCorr,
		&app.PermitType, &otherPermit, &details, &files,
		&app.ApplicantSignature, &applicationDate, &applicationOffset, &submittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan permit application: %w", err)
	}

	app.Alias = alias.String
	app.Crew = crew.String
	app.ContactAddress = contact.String
	app.PreferredContact = preferred.String
	app.OtherCorrText = otherCorr.String
	app.OtherPermitText = otherPermit.String
	app.PermitDetails = details.String

	if err := app.SetSupportingFiles([]byte(files.String)); err != nil {
		db.logger.Warn().Err(err).Int64("application_id", app.ID).Msg("failed to parse supporting files")
	}

	if t, err := parseTimestamp(applicationDate); err == nil {
		app.ApplicationDate = inOffset(t, applicationOffset)
	} else {
		db.logger.Warn().Err(err).Int64("application_id", app.ID).Msg("failed to parse application date")
	}
	if t, err := parseTimestamp(submittedAt); err == nil {
		app.SubmittedAt = t
	} else {
		db.logger.Warn().Err(err).Int64("application_id", app.ID).Msg("failed to parse submitted_at")
	}

	return &app, nil
}

var timestampLayouts = []string{
	models.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// nullString returns a sql.NullString, null when s is empty.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requiredString maps an empty string to NULL so NOT NULL constraints reject it.
func requiredString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// zoneOffset returns the seconds east of UTC t was recorded in.
func zoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

// inOffset restores a stored UTC instant to the offset it was written in.
func inOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t
	}
	return t.In(time.FixedZone("", offset))
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(models.TimestampLayout)
}
