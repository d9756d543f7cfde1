package handlers

import (
	"errors"
	"net/http"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/ledger"
	applog "budget-tracker/internal/log"
)

// CredentialsViewModel holds data for the login and register pages.
type CredentialsViewModel struct {
	Page
	FormUsername string
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", CredentialsViewModel{Page: Page{Flash: popFlash(w, r)}})
}

// Register creates a user together with the default accounts and categories.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if err := h.bindForm(r, &form); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", CredentialsViewModel{
			Page: Page{Error: err.Error()}, FormUsername: form.Username,
		})
		return
	}

	user, err := h.credentials.Register(r.Context(), form.Username, form.Password, ledger.SeedDefaults)
	switch {
	case errors.Is(err, auth.ErrDuplicateUsername):
		h.render(w, r, http.StatusOK, "register.html", CredentialsViewModel{
			Page: Page{Flash: &Flash{Kind: "danger", Message: "Username already exists"}}, FormUsername: form.Username,
		})
		return
	case errors.Is(err, auth.ErrMissingCredentials):
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", CredentialsViewModel{
			Page: Page{Error: "Username and password are required"}, FormUsername: form.Username,
		})
		return
	case errors.Is(err, auth.ErrUsernameTooLong), errors.Is(err, auth.ErrPasswordTooLong):
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", CredentialsViewModel{
			Page: Page{Error: err.Error()}, FormUsername: form.Username,
		})
		return
	case err != nil:
		h.serverError(w, r, "registration failed", err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "user registered", applog.FieldUserID, user.ID)
	setFlash(w, "success", "Registration successful! Please login.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// LoginForm renders the login page, or sends authenticated users to their dashboard.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Current(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", CredentialsViewModel{Page: Page{Flash: popFlash(w, r)}})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if err := h.bindForm(r, &form); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "login.html", CredentialsViewModel{
			Page: Page{Error: "Username and password are required"}, FormUsername: form.Username,
		})
		return
	}

	user, err := h.credentials.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrAuthFailure) {
		h.render(w, r, http.StatusOK, "login.html", CredentialsViewModel{
			Page: Page{Error: "Invalid username or password"}, FormUsername: form.Username,
		})
		return
	}
	if err != nil {
		h.serverError(w, r, "login failed", err)
		return
	}

	if err := h.sessions.Start(w, user.ID, user.Username); err != nil {
		h.serverError(w, r, "failed to start session", err)
		return
	}

	setFlash(w, "success", "Login successful!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.End(w)
	setFlash(w, "info", "Logged out")
	http.Redirect(w, r, "/login", http.StatusFound)
}
