package view

import (
	"io"
	"text/template"
	"time"

	"github.com/google/uuid"
)

// TimeLayout renders timestamps as dd.MM.yyyy HH:mm:ss.
const TimeLayout = "02.01.2006 15:04:05"

// LinkRow is one link as shown to its owner.
type LinkRow struct {
	ShortURL    string
	TargetURL   string
	AccessCount int
	AccessLimit int
	ExpiresAt   time.Time
}

// CreatedLinkData provides the fields shown after a link is created.
type CreatedLinkData struct {
	ShortURL    string
	TargetURL   string
	AccessLimit int
	ExpiresAt   time.Time
}

// LinkListData provides the rows for an owner's listing.
type LinkListData struct {
	Links []LinkRow
}

// UserData provides the fields of the user info screen.
type UserData struct {
	ID          uuid.UUID
	Username    string
	CreatedAt   time.Time
	ActiveLinks int
}

var funcs = template.FuncMap{
	"stamp": func(t time.Time) string { return t.Local().Format(TimeLayout) },
}

var createdTmpl = template.Must(template.New("created").Funcs(funcs).Parse(
	`Short link: {{.ShortURL}}
Target:     {{.TargetURL}}
Uses:       {{.AccessLimit}}
Expires:    {{stamp .ExpiresAt}}
`))

var linkListTmpl = template.Must(template.New("links").Funcs(funcs).Parse(
	`{{if not .Links}}You have no active links.
{{else}}Your links:
{{range .Links}}  {{.ShortURL}} -> {{.TargetURL}}
    uses {{.AccessCount}}/{{.AccessLimit}}, expires {{stamp .ExpiresAt}}
{{end}}{{end}}`))

var userTmpl = template.Must(template.New("user").Funcs(funcs).Parse(
	`User:         {{.Username}}
ID:           {{.ID}}
Registered:   {{stamp .CreatedAt}}
Active links: {{.ActiveLinks}}
`))

// RenderCreatedLink writes the confirmation for a new link.
func RenderCreatedLink(w io.Writer, data CreatedLinkData) error {
	return createdTmpl.Execute(w, data)
}

// RenderLinkList writes an owner's links, or a note when there are none.
func RenderLinkList(w io.Writer, data LinkListData) error {
	return linkListTmpl.Execute(w, data)
}

// RenderUser writes the user info screen.
func RenderUser(w io.Writer, data UserData) error {
	return userTmpl.Execute(w, data)
}
