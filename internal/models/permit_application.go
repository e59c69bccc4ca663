package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the fixed-width UTC layout used for persisted timestamps.
// Lexical order of values in this layout matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// PermitApplication is a single permit application submitted to the council.
// Rows are append-only once persisted.
type PermitApplication struct {
	ID                 int64     `json:"id"`
	FullName           string    `json:"full_name"`
	Alias              string    `json:"alias,omitempty"`
	Crew               string    `json:"crew,omitempty"`
	ContactAddress     string    `json:"contact_address,omitempty"`
	PreferredContact   string    `json:"preferred_contact,omitempty"`
	OtherCorrText      string    `json:"other_corr_text,omitempty"`
	PermitType         string    `json:"permit_type"`
	OtherPermitText    string    `json:"other_permit_text,omitempty"`
	PermitDetails      string    `json:"permit_details,omitempty"`
	SupportingFiles    []string  `json:"supporting_files"`
	ApplicantSignature string    `json:"applicant_signature"`
	ApplicationDate    time.Time `json:"application_date"`
	SubmittedAt        time.Time `json:"submitted_at"`
}

// NewPermitApplication creates an application with the required fields set.
func NewPermitApplication(fullName, permitType, signature string, applicationDate time.Time) *PermitApplication {
	return &PermitApplication{
		FullName:           fullName,
		PermitType:         permitType,
		ApplicantSignature: signature,
		ApplicationDate:    applicationDate,
		SupportingFiles:    []string{},
	}
}

// SetSupportingFiles decodes the stored filename list. Empty input yields an
// empty list. On malformed input the list is reset to empty and the decode
// error is returned so the caller can log it.
func (p *PermitApplication) SetSupportingFiles(data []byte) error {
	p.SupportingFiles = []string{}
	if len(data) == 0 {
		return nil
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return err
	}
	if files != nil {
		p.SupportingFiles = files
	}
	return nil
}

// SupportingFilesJSON returns the filename list for database storage.
// An empty list is stored as NULL, so nil is returned.
func (p *PermitApplication) SupportingFilesJSON() ([]byte, error) {
	if len(p.SupportingFiles) == 0 {
		return nil, nil
	}
	return json.Marshal(p.SupportingFiles)
}

// HasAttachments reports whether any supporting files were stored.
func (p *PermitApplication) HasAttachments() bool {
	return len(p.SupportingFiles) > 0
}
