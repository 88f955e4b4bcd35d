// Package templates renders the terminal messages shown during login and status checks
package templates

import (
	"embed"
	"fmt"
	"io"
	"text/template"
	"time"
)

//go:embed text/*.tmpl
var content embed.FS

// TemplateError wraps a rendering failure
type TemplateError struct {
	Cause   error
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates holds the parsed terminal templates
type Templates struct {
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"seconds": func(n int) string {
		return (time.Duration(n) * time.Second).String()
	},
}

// LoadTemplates parses all embedded templates
func LoadTemplates() (*Templates, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(content, "text/*.tmpl")
	if err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing templates"}
	}
	return &Templates{tmpl: tmpl}, nil
}

// LoginData holds the device authorization details shown to the user
type LoginData struct {
	VerificationURI         string
	VerificationURIComplete string
	UserCode                string
	ExpiresIn               int
	BrowserOpened           bool
}

// RenderLogin renders the sign-in instructions
func (t *Templates) RenderLogin(w io.Writer, data LoginData) error {
	return t.render(w, "login", data)
}

// StatusData describes the cached session
type StatusData struct {
	BaseURL  string
	ClientID string
	Store    string
	LoggedIn bool
	Scope    string
	Expiry   time.Time
	Expired  bool
}

// RenderStatus renders the session summary
func (t *Templates) RenderStatus(w io.Writer, data StatusData) error {
	return t.render(w, "status", data)
}

// OutcomeData describes a login that ended without a token
type OutcomeData struct {
	Message     string
	Description string
}

// RenderOutcome renders an expired or denied login
func (t *Templates) RenderOutcome(w io.Writer, data OutcomeData) error {
	return t.render(w, "outcome", data)
}

func (t *Templates) render(w io.Writer, name string, data any) error {
	if err := t.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return &TemplateError{Cause: err, Message: "rendering " + name}
	}
	return nil
}
