package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/citizenvoice/platform/internal/geo"
	apperrors "github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/response"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/citizenvoice/platform/internal/shared/validate"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

// Handler provides HTTP handlers for the auth module
type Handler struct {
	svc    *Service
	cookie CookieConfig
	logger *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(svc *Service, cookie CookieConfig, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, cookie: cookie, logger: logger}
}

// Routes registers the public auth routes. /me is mounted separately behind
// the authentication middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	return r
}

// Profile is the user as returned by the session check
type Profile struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Scope geo.Level `json:"administration_scope,omitempty"`
	types.Location
}

// LoginUser is the user as returned by login and registration
type LoginUser struct {
	ID types.ID `json:"id"`
	Profile
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	User LoginUser `json:"user"`
}

func profileOf(a Actor) Profile {
	return Profile{Name: a.Name, Email: a.Email, Role: a.Role, Scope: a.Scope, Location: a.Location}
}

// RegisterRequest is a citizen self-registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Province string `json:"province" validate:"required"`
	District string `json:"district" validate:"required"`
	Sector   string `json:"sector" validate:"required"`
	Cell     string `json:"cell" validate:"required"`
	Village  string `json:"village" validate:"required"`
}

// LoginRequest carries credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a citizen account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	u, err := h.svc.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Location: types.NewLocation(req.Province, req.District, req.Sector, req.Cell, req.Village),
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, LoginResponse{User: LoginUser{ID: u.ID, Profile: profileOf(u.Actor())}})
}

// Login opens a session and sets the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password, ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    result.Token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	response.JSON(w, http.StatusOK, LoginResponse{
		User: LoginUser{ID: result.User.ID, Profile: profileOf(result.User.Actor())},
	})
}

// Me returns the authenticated actor without its id
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		response.Error(w, h.logger, apperrors.Unauthorized("authentication required"))
		return
	}
	response.JSON(w, http.StatusOK, profileOf(actor))
}

// Logout revokes the session and expires the cookie. It succeeds even
// without a valid session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r, h.cookie.Name); token != "" {
		if err := h.svc.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout failed to revoke session", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// TokenFromRequest reads the session token from the cookie, falling back to
// a Bearer Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
