// Package web embeds the HTML templates and static assets of the permit office.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// UploadsPath is the route prefix attachments are served under.
const UploadsPath = "/uploaded_permit_files/"

// Funcs returns the helper functions available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"datetime":      formatDateTime,
		"localdatetime": formatLocalDateTime,
		"date":          formatDate,
		"join":          strings.Join,
		"uploadURL":     UploadURL,
		"avatarURL":     AvatarURL,
	}
}

// Templates parses every embedded page template.
func Templates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Static returns the embedded static assets rooted at the static directory.
func Static() (http.FileSystem, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	return http.FS(sub), nil
}

// UploadURL returns the download path of a stored attachment.
func UploadURL(name string) string {
	return UploadsPath + url.PathEscape(name)
}

// AvatarURL returns the Discord CDN URL for a user avatar, or "" when the
// user has none.
func AvatarURL(userID, hash string) string {
	if userID == "" || hash == "" {
		return ""
	}
	return "https://cdn.discordapp.com/avatars/" + url.PathEscape(userID) + "/" + url.PathEscape(hash) + ".png?size=64"
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// formatLocalDateTime keeps the offset t was written in.
func formatLocalDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04 -07:00")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("January 2, 2006")
}
