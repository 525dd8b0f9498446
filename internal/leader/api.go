package leader

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/geo"
	sharedauth "github.com/citizenvoice/platform/internal/shared/auth"
	"github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/events"
	"github.com/citizenvoice/platform/internal/shared/response"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/citizenvoice/platform/internal/shared/validate"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AccountManager creates accounts with a temporary password and revokes
// the sessions of removed ones
type AccountManager interface {
	CreateAccount(ctx context.Context, acct auth.NewAccount) (*auth.User, string, error)
	RevokeSessions(ctx context.Context, userID types.ID) error
}

// Handler provides HTTP handlers for leader administration
type Handler struct {
	accounts AccountManager
	users    auth.UserRepository
	bus      events.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new leader handler
func NewHandler(accounts AccountManager, users auth.UserRepository, bus events.EventBus, logger *zap.Logger) *Handler {
	return &Handler{accounts: accounts, users: users, bus: bus, logger: logger}
}

// AdminRoutes registers the routes mounted under /admin
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(sharedauth.RequireRoles(h.logger, auth.RoleAdmin))

	r.Route("/leaders", func(r chi.Router) {
		r.Get("/", h.ListLeaders)
		r.Post("/", h.CreateLeader)
		r.Get("/{leaderID}", h.GetLeader)
		r.Delete("/{leaderID}", h.DeleteLeader)
	})
	r.Get("/citizens", h.ListAllCitizens)

	return r
}

// LeaderRoutes registers the routes mounted under /leader
func (h *Handler) LeaderRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(sharedauth.RequireRoles(h.logger, auth.RoleLeader))

	r.Get("/citizens", h.ListAreaCitizens)

	return r
}

// CreateLeader creates a leader account and returns its temporary password
func (h *Handler) CreateLeader(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaderRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	scope, err := geo.ParseLevel(string(req.AdministrationScope()))
	if err != nil {
		response.Error(w, h.logger, errors.Validation("validation failed", map[string]string{
			"administration_scope": "must be one of NATIONAL PROVINCE DISTRICT SECTOR CELL VILLAGE",
		}))
		return
	}

	u, password, err := h.accounts.CreateAccount(r.Context(), auth.NewAccount{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     auth.RoleLeader,
		Scope:    scope,
		Location: req.Location(),
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	h.publish(r.Context(), "leader.created", u)
	response.JSON(w, http.StatusCreated, CreatedLeader{Leader: *u, TemporaryPassword: password})
}

// ListLeaders lists leaders, optionally by scope and location
func (h *Handler) ListLeaders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := baseFilter(q, auth.RoleLeader)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	filter.Area = geo.Narrowing(locationQuery(q))

	if s := q.Get("administration_scope"); s != "" {
		scope, err := geo.ParseLevel(s)
		if err != nil {
			response.Error(w, h.logger, errors.BadRequest("unknown administration scope"))
			return
		}
		filter.Scope = &scope
	}

	h.list(w, r, filter)
}

// GetLeader returns a single leader
func (h *Handler) GetLeader(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadLeader(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, u)
}

// DeleteLeader removes a leader account
func (h *Handler) DeleteLeader(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadLeader(w, r)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), u.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.accounts.RevokeSessions(r.Context(), u.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	h.publish(r.Context(), "leader.deleted", u)
	w.WriteHeader(http.StatusNoContent)
}

// ListAllCitizens lists citizens for admins, optionally narrowed by location
func (h *Handler) ListAllCitizens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := baseFilter(q, auth.RoleCitizen)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	filter.Area = geo.Narrowing(locationQuery(q))

	h.list(w, r, filter)
}

// ListAreaCitizens lists the citizens living in the leader's area
func (h *Handler) ListAreaCitizens(w http.ResponseWriter, r *http.Request) {
	actor, _ := sharedauth.GetActor(r.Context())

	filter, err := baseFilter(r.URL.Query(), auth.RoleCitizen)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	filter.Area = actor.Condition()

	h.list(w, r, filter)
}

// --- Helpers ---

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter auth.UserFilter) {
	users, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}
	response.List(w, users, total)
}

func (h *Handler) loadLeader(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	id, err := types.ParseID(chi.URLParam(r, "leaderID"))
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid leader ID"))
		return nil, false
	}

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return nil, false
	}
	if u.Role != auth.RoleLeader {
		response.Error(w, h.logger, errors.NotFound("leader", id.String()))
		return nil, false
	}
	return u, true
}

func (h *Handler) publish(ctx context.Context, eventType string, u *auth.User) {
	if h.bus == nil {
		return
	}

	actor, _ := sharedauth.GetActor(ctx)
	actorID, _ := actor.ID.Get()
	event := events.NewEvent(eventType, "leader", "leader-"+u.ID.String(), map[string]any{
		"leader_id":            u.ID,
		"administration_scope": u.Scope,
		"location":             u.Location,
	}).WithActor(actorID, auth.ActorType(actor.Role))

	if err := h.bus.Publish(ctx, event); err != nil {
		h.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func baseFilter(q url.Values, role auth.Role) (auth.UserFilter, error) {
	filter := auth.UserFilter{
		Role:   &role,
		Search: q.Get("search"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, errors.BadRequest("invalid " + p.name)
		}
		*p.dst = n
	}

	return filter, nil
}

func locationQuery(q url.Values) types.Location {
	return types.NewLocation(q.Get("province"), q.Get("district"), q.Get("sector"), q.Get("cell"), q.Get("village"))
}
