package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/complaint/domain"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/leader"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated is returned for 401 responses
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned for 403 responses
	ErrForbidden = errors.New("not permitted")
	// ErrTransport covers network failures and 5xx responses
	ErrTransport = errors.New("service unreachable")
)

// APIError is a 4xx response other than 401 and 403
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
}

// Page is a list response
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// Client talks to the backend REST API with a cookie session. Requests are
// never retried.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Client{http: client, logger: logger}, nil
}

// Me confirms the session. The response has no id, so the actor's id is
// Unknown.
func (c *Client) Me(ctx context.Context) (auth.Actor, error) {
	var profile auth.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile); err != nil {
		return auth.Actor{}, err
	}
	return actorOf(types.Unknown, profile), nil
}

// Login opens a session; the session cookie is kept in the jar
func (c *Client) Login(ctx context.Context, email, password string) (auth.Actor, error) {
	var resp auth.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", auth.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return auth.Actor{}, err
	}
	return actorOf(types.Known(resp.User.ID), resp.User.Profile), nil
}

// Logout ends the server session
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// LeaderForm is the admin form for a new leader
type LeaderForm struct {
	Name     string
	Email    string
	Phone    string
	Scope    geo.Level
	Location types.Location
}

// CreateLeader submits form. Only non-empty location fields are sent.
func (c *Client) CreateLeader(ctx context.Context, form LeaderForm) (*leader.CreatedLeader, error) {
	req := leader.CreateLeaderRequest{
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
		Scope:    form.Scope,
		Province: form.Location.Province,
		District: form.Location.District,
		Sector:   form.Location.Sector,
		Cell:     form.Location.Cell,
		Village:  form.Location.Village,
	}

	var created leader.CreatedLeader
	if err := c.do(ctx, http.MethodPost, "/admin/leaders", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ComplaintQuery filters complaint lists
type ComplaintQuery struct {
	Location types.Location
	Status   domain.Status
	Category domain.Category
	Search   string
	Limit    int
	Offset   int
}

func (q ComplaintQuery) params() map[string]string {
	p := locationParams(q.Location)
	setIf(p, "status", string(q.Status))
	setIf(p, "category", string(q.Category))
	setIf(p, "search", q.Search)
	if q.Limit > 0 {
		p["limit"] = strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		p["offset"] = strconv.Itoa(q.Offset)
	}
	return p
}

// ListComplaints lists the complaints the session may see
func (c *Client) ListComplaints(ctx context.Context, q ComplaintQuery) (Page[domain.Complaint], error) {
	var page Page[domain.Complaint]
	err := c.doQuery(ctx, "/complaints", q.params(), &page)
	return page, err
}

// ListAreaCitizens lists the citizens in the leader's area
func (c *Client) ListAreaCitizens(ctx context.Context) (Page[auth.User], error) {
	var page Page[auth.User]
	err := c.doQuery(ctx, "/leader/citizens", nil, &page)
	return page, err
}

// ListAllCitizens lists citizens for admins, narrowed by loc
func (c *Client) ListAllCitizens(ctx context.Context, loc types.Location) (Page[auth.User], error) {
	var page Page[auth.User]
	err := c.doQuery(ctx, "/admin/citizens", locationParams(loc), &page)
	return page, err
}

// Respond posts a response, replying to parentID when set
func (c *Client) Respond(ctx context.Context, complaintID types.ID, message string, parentID *types.ID) (*domain.Response, error) {
	var resp domain.Response
	body := map[string]any{"message": message}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	if err := c.do(ctx, http.MethodPost, "/complaints/"+complaintID.String()+"/responses", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doQuery(ctx context.Context, path string, params map[string]string, result any) error {
	req := c.http.R().SetContext(ctx).SetQueryParams(params).SetResult(result).SetError(&APIError{})
	resp, err := req.Get(path)
	return c.check(http.MethodGet, path, resp, err)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	return c.check(method, path, resp, err)
}

// check maps a response onto the client errors
func (c *Client) check(method, path string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	switch code := resp.StatusCode(); {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthenticated
	case code == http.StatusForbidden:
		return ErrForbidden
	case code >= 500:
		c.logger.Warn("server error", zap.String("method", method), zap.String("path", path), zap.Int("status", code))
		return fmt.Errorf("%w: status %d", ErrTransport, code)
	default:
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{Message: resp.String()}
		}
		apiErr.Status = code
		return apiErr
	}
}

func actorOf(id types.OptionalID, p auth.Profile) auth.Actor {
	return auth.Actor{
		ID:       id,
		Name:     p.Name,
		Email:    p.Email,
		Role:     p.Role,
		Scope:    p.Scope,
		Location: p.Location,
	}
}

func locationParams(loc types.Location) map[string]string {
	p := make(map[string]string)
	setIf(p, "province", loc.Province)
	setIf(p, "district", loc.District)
	setIf(p, "sector", loc.Sector)
	setIf(p, "cell", loc.Cell)
	setIf(p, "village", loc.Village)
	return p
}

func setIf(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// UserMessage turns a client error into the notice shown to the user
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has ended. Please sign in again."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to do that."
	case errors.Is(err, ErrTransport):
		return "We could not reach the server. Please try again."
	case errors.As(err, &apiErr):
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}
