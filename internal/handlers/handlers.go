package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/ledger"
	applog "budget-tracker/internal/log"
	"budget-tracker/internal/storage"
	"budget-tracker/web"

	"github.com/go-playground/validator/v10"
)

var views = []string{"login.html", "register.html", "dashboard.html", "transactions.html"}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db          *storage.DB
	credentials *auth.Credentials
	ledger      *ledger.Service
	sessions    *auth.SessionManager
	templates   map[string]*template.Template
	validate    *validator.Validate
}

// NewHandlers creates a new Handlers instance and parses the embedded templates.
func NewHandlers(db *storage.DB, sessions *auth.SessionManager) (*Handlers, error) {
	templates, err := parseTemplates(web.TemplatesFS)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		db:          db,
		credentials: auth.NewCredentials(db),
		ledger:      ledger.NewService(db),
		sessions:    sessions,
		templates:   templates,
		validate:    newValidator(),
	}, nil
}

func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(views))
	for _, view := range views {
		tmpl, err := template.ParseFS(fsys, "templates/base.html", "templates/"+view)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", view, err)
		}
		templates[view] = tmpl
	}
	return templates, nil
}

// Page carries what every page template needs.
type Page struct {
	Username string
	Flash    *Flash
	Error    string
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	tmpl, ok := h.templates[viewName]
	if !ok {
		h.serverError(w, r, "unknown template", fmt.Errorf("template %s not loaded", viewName))
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		h.serverError(w, r, "template execution failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg, applog.FieldError, err, applog.FieldPath, r.URL.Path)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// Healthz reports whether the database is reachable.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.serverError(w, r, "health check failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// SessionHandler is a handler that runs only for authenticated requests and
// receives the caller's session explicitly.
type SessionHandler func(w http.ResponseWriter, r *http.Request, s auth.Session)

// RequireSession redirects anonymous requests to /login. Authenticated
// sessions past half their lifetime are renewed.
func (h *Handlers) RequireSession(next SessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.sessions.Current(r)
		if !ok {
			if _, err := r.Cookie(auth.SessionCookieName); err == nil {
				// Invalid or expired session, clear the cookie
				h.sessions.End(w)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if _, err := h.sessions.Renew(w, s); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "session renewal failed", applog.FieldError, err)
		}

		ctx := applog.WithLogger(r.Context(), applog.FromContext(r.Context()).With(applog.FieldUserID, s.UserID))
		next(w, r.WithContext(ctx), s)
	})
}

// Mount registers every route on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("GET /healthz", h.Healthz)

	mux.HandleFunc("GET /register", h.RegisterForm)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)

	mux.Handle("GET /dashboard", h.RequireSession(h.Dashboard))
	mux.Handle("GET /transactions", h.RequireSession(h.ListTransactions))
	mux.Handle("POST /transactions", h.RequireSession(h.CreateTransaction))
	mux.Handle("POST /manage_accounts", h.RequireSession(h.ManageAccounts))
	mux.Handle("POST /manage_categories", h.RequireSession(h.ManageCategories))
}
