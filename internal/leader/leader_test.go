package leader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/location"
	apperrors "github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/events"
	"github.com/citizenvoice/platform/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu         sync.Mutex
	users      map[types.ID]auth.User
	lastFilter auth.UserFilter
}

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.Conflict("an account with this email already exists")
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id types.ID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id.String())
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (m *memUsers) Delete(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperrors.NotFound("user", id.String())
	}
	delete(m.users, id)
	return nil
}

// List applies the same role, scope and area rules as the SQL repository
func (m *memUsers) List(_ context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []auth.User
	for _, u := range m.users {
		if !filter.Area.Matches(u.Location) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Scope != nil && u.Scope != *filter.Scope {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) Close() {}

func (b *recordingBus) Health(context.Context) error { return nil }

var (
	admin = auth.Actor{ID: types.Known(types.NewID()), Role: auth.RoleAdmin}

	remeraLeader = auth.Actor{
		ID:       types.Known(types.NewID()),
		Role:     auth.RoleLeader,
		Scope:    geo.LevelSector,
		Location: types.NewLocation("Kigali", "Gasabo", "Remera", "", ""),
	}
)

type testEnv struct {
	svc   *auth.Service
	users *memUsers
	bus   *recordingBus
	admin http.Handler
	lead  http.Handler
}

func newTestEnv() *testEnv {
	users := &memUsers{users: make(map[types.ID]auth.User)}
	svc := auth.NewService(users, auth.NewMemorySessionStore(), auth.NewTokenIssuer("test-secret", "test", time.Hour),
		location.Default(), bcrypt.MinCost, zap.NewNop())
	bus := &recordingBus{}
	h := NewHandler(svc, users, bus, zap.NewNop())
	return &testEnv{svc: svc, users: users, bus: bus, admin: h.AdminRoutes(), lead: h.LeaderRoutes()}
}

func (env *testEnv) addUser(role auth.Role, scope geo.Level, loc types.Location) auth.User {
	u := auth.User{
		ID:       types.NewID(),
		Name:     "User " + string(role),
		Email:    types.NewID().String() + "@example.rw",
		Role:     role,
		Scope:    scope,
		Location: loc,
	}
	env.users.users[u.ID] = u
	return u
}

func serve(router http.Handler, actor *auth.Actor, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateLeader(t *testing.T) {
	env := newTestEnv()

	rec := serve(env.admin, &admin, http.MethodPost, "/leaders", map[string]string{
		"name":                 "Claudine",
		"email":                "Claudine@Example.rw",
		"administration_scope": "SECTOR",
		"province":             "Kigali",
		"district":             "Gasabo",
		"sector":               "Remera",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created CreatedLeader
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TemporaryPassword == "" {
		t.Error("Expected a temporary password")
	}
	if created.Leader.Role != auth.RoleLeader || created.Leader.Scope != geo.LevelSector {
		t.Errorf("Unexpected leader %+v", created.Leader)
	}
	if created.Leader.Email != "claudine@example.rw" {
		t.Errorf("Expected normalized email, got %s", created.Leader.Email)
	}

	stored := env.users.users[created.Leader.ID]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(created.TemporaryPassword)); err != nil {
		t.Error("Expected temporary password to match the stored hash")
	}
	if len(env.bus.events) != 1 || env.bus.events[0].Type != "leader.created" {
		t.Errorf("Expected leader.created event, got %+v", env.bus.events)
	}
}

func TestCreateLeaderLegacyScopeKey(t *testing.T) {
	env := newTestEnv()

	rec := serve(env.admin, &admin, http.MethodPost, "/leaders", map[string]string{
		"name":               "Eric",
		"email":              "eric@example.rw",
		"adminstrationScope": "DISTRICT",
		"province":           "Kigali",
		"district":           "Kicukiro",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateLeaderAdminFormPayload(t *testing.T) {
	env := newTestEnv()

	rec := serve(env.admin, &admin, http.MethodPost, "/leaders", map[string]string{
		"name":               "Jane Doe",
		"email":              "jane@x.com",
		"adminstrationScope": "SECTOR",
		"province":           "Kigali",
		"district":           "Gasabo",
		"sector":             "Remera",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created CreatedLeader
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expected := types.NewLocation("Kigali", "Gasabo", "Remera", "", "")
	if created.Leader.Location != expected {
		t.Errorf("Expected location %+v, got %+v", expected, created.Leader.Location)
	}
	if created.Leader.Scope != geo.LevelSector {
		t.Errorf("Expected scope SECTOR, got %s", created.Leader.Scope)
	}
}

func TestCreateLeaderValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{
			"name": "A", "administration_scope": "PROVINCE", "province": "Kigali",
		}},
		{"unknown scope", map[string]string{
			"name": "A", "email": "a@example.rw", "administration_scope": "COUNTY", "province": "Kigali",
		}},
		{"location deeper than scope", map[string]string{
			"name": "A", "email": "a@example.rw", "administration_scope": "DISTRICT",
			"province": "Kigali", "district": "Gasabo", "sector": "Remera",
		}},
		{"location shallower than scope", map[string]string{
			"name": "A", "email": "a@example.rw", "administration_scope": "CELL",
			"province": "Kigali", "district": "Gasabo", "sector": "Remera",
		}},
		{"unknown sector", map[string]string{
			"name": "A", "email": "a@example.rw", "administration_scope": "SECTOR",
			"province": "Kigali", "district": "Gasabo", "sector": "Atlantis",
		}},
		{"national with location", map[string]string{
			"name": "A", "email": "a@example.rw", "administration_scope": "NATIONAL", "province": "Kigali",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			rec := serve(env.admin, &admin, http.MethodPost, "/leaders", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(env.users.users) != 0 {
				t.Error("Expected no account to be created")
			}
		})
	}
}

func TestCreateLeaderDuplicateEmail(t *testing.T) {
	env := newTestEnv()
	body := map[string]string{
		"name": "A", "email": "a@example.rw", "administration_scope": "NATIONAL",
	}

	if rec := serve(env.admin, &admin, http.MethodPost, "/leaders", body); rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(env.admin, &admin, http.MethodPost, "/leaders", body); rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv()

	if rec := serve(env.admin, &remeraLeader, http.MethodGet, "/leaders", nil); rec.Code != http.StatusForbidden {
		t.Errorf("Expected leader to get 403, got %d", rec.Code)
	}
	if rec := serve(env.admin, nil, http.MethodGet, "/citizens", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected anonymous to get 401, got %d", rec.Code)
	}
	if rec := serve(env.lead, &admin, http.MethodGet, "/citizens", nil); rec.Code != http.StatusForbidden {
		t.Errorf("Expected admin on leader route to get 403, got %d", rec.Code)
	}
}

func TestListLeadersFilters(t *testing.T) {
	env := newTestEnv()
	env.addUser(auth.RoleLeader, geo.LevelSector, types.NewLocation("Kigali", "Gasabo", "Remera", "", ""))
	env.addUser(auth.RoleLeader, geo.LevelDistrict, types.NewLocation("Kigali", "Gasabo", "", "", ""))
	env.addUser(auth.RoleLeader, geo.LevelDistrict, types.NewLocation("Kigali", "Kicukiro", "", "", ""))
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze"))

	tests := []struct {
		query    string
		expected int
	}{
		{"", 3},
		{"?administration_scope=DISTRICT", 2},
		{"?province=Kigali&district=Gasabo", 2},
		{"?district=Gasabo&administration_scope=SECTOR", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(env.admin, &admin, http.MethodGet, "/leaders"+tt.query, nil)
			var list struct {
				Data  []auth.User `json:"data"`
				Total int         `json:"total"`
			}
			json.NewDecoder(rec.Body).Decode(&list)
			if list.Total != tt.expected {
				t.Errorf("Expected %d leaders, got %d", tt.expected, list.Total)
			}
		})
	}

	if rec := serve(env.admin, &admin, http.MethodGet, "/leaders?administration_scope=COUNTY", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeleteLeader(t *testing.T) {
	env := newTestEnv()
	l := env.addUser(auth.RoleLeader, geo.LevelNational, types.Location{})
	c := env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze"))

	if rec := serve(env.admin, &admin, http.MethodDelete, "/leaders/"+c.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected deleting a citizen through leaders to be 404, got %d", rec.Code)
	}

	if rec := serve(env.admin, &admin, http.MethodDelete, "/leaders/"+l.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	if _, ok := env.users.users[l.ID]; ok {
		t.Error("Expected leader to be removed")
	}
	if rec := serve(env.admin, &admin, http.MethodGet, "/leaders/"+l.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestDeleteLeaderRevokesSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	rec := serve(env.admin, &admin, http.MethodPost, "/leaders", map[string]string{
		"name":                 "Jane Doe",
		"email":                "jane@x.com",
		"administration_scope": "SECTOR",
		"province":             "Kigali",
		"district":             "Gasabo",
		"sector":               "Remera",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created CreatedLeader
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var tokens []string
	for i := 0; i < 2; i++ {
		result, err := env.svc.Login(ctx, "jane@x.com", created.TemporaryPassword, auth.ClientInfo{})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		tokens = append(tokens, result.Token)
	}

	if rec := serve(env.admin, &admin, http.MethodDelete, "/leaders/"+created.Leader.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}

	for _, token := range tokens {
		_, err := env.svc.Authenticate(ctx, token)
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.HTTPStatus != http.StatusUnauthorized {
			t.Errorf("Expected deleted leader's session to be rejected with 401, got %v", err)
		}
	}
}

func TestLeaderSeesOnlyAreaCitizens(t *testing.T) {
	env := newTestEnv()
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze"))
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Gasabo", "Remera", "Nyabisindu", "Gihogere"))
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Kicukiro", "Niboye", "Gatare", "Rukiri"))

	rec := serve(env.lead, &remeraLeader, http.MethodGet, "/citizens", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var list struct {
		Data  []auth.User `json:"data"`
		Total int         `json:"total"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Total != 2 {
		t.Errorf("Expected 2 citizens in Remera, got %d", list.Total)
	}
	for _, u := range list.Data {
		if u.Location.Sector != "Remera" {
			t.Errorf("Unexpected citizen outside area: %+v", u.Location)
		}
	}

	unlocated := auth.Actor{ID: types.Known(types.NewID()), Role: auth.RoleLeader, Scope: geo.LevelSector}
	rec = serve(env.lead, &unlocated, http.MethodGet, "/citizens", nil)
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Total != 0 {
		t.Errorf("Expected leader without location to see nobody, got %d", list.Total)
	}
}

func TestAdminCitizensNarrowing(t *testing.T) {
	env := newTestEnv()
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze"))
	env.addUser(auth.RoleCitizen, "", types.NewLocation("Kigali", "Kicukiro", "Niboye", "Gatare", "Rukiri"))

	rec := serve(env.admin, &admin, http.MethodGet, "/citizens?district=Kicukiro&limit=5", nil)
	var list struct {
		Total int `json:"total"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Total != 1 {
		t.Errorf("Expected 1 citizen in Kicukiro, got %d", list.Total)
	}
	if env.users.lastFilter.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", env.users.lastFilter.Limit)
	}

	rec = serve(env.admin, &admin, http.MethodGet, "/citizens", nil)
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Total != 2 {
		t.Errorf("Expected all citizens without narrowing, got %d", list.Total)
	}

	if rec := serve(env.admin, &admin, http.MethodGet, "/citizens?offset=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}
