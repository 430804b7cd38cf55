package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/erazemk/alergo/internal/auth"
	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/notify"
	webembed "github.com/erazemk/alergo/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleStaff:
				return "Staff"
			case model.RoleViewer:
				return "Viewer"
			default:
				return role
			}
		},
		"date":    model.FormatDate,
		"optDate": model.FormatOptionalDate,
	}
}

var pages = []string{
	"login.html",
	"dashboard.html",
	"extracts.html",
	"extract_detail.html",
	"nearing_expiry.html",
	"low_stock.html",
	"panels.html",
	"panel_detail.html",
	"inventory.html",
	"usage.html",
	"users.html",
	"settings.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with an explicit status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	JWTSecret string
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier // nil disables manual notifications
	Now       func() time.Time
}

// page builds the base page data, picking up flash messages passed
// through the query string by redirectFlash.
func (s *Server) page(r *http.Request, title string) PageData {
	q := r.URL.Query()
	return PageData{
		Title:   title,
		User:    GetWebClaims(r.Context()),
		Error:   q.Get("error"),
		Success: q.Get("ok"),
	}
}

// today returns the current calendar day.
func (s *Server) today() time.Time {
	return model.Day(s.Now())
}

// redirectOK redirects to path with a success flash message.
func redirectOK(w http.ResponseWriter, r *http.Request, path, msg string) {
	redirectFlash(w, r, path, "ok", msg)
}

// redirectError redirects to path with an error flash message.
func redirectError(w http.ResponseWriter, r *http.Request, path, msg string) {
	redirectFlash(w, r, path, "error", msg)
}

func redirectFlash(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	http.Redirect(w, r, path+"?"+url.Values{key: {msg}}.Encode(), http.StatusSeeOther)
}
