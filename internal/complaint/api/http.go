package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/citizenvoice/platform/internal/attachment"
	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/complaint/domain"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/location"
	sharedauth "github.com/citizenvoice/platform/internal/shared/auth"
	"github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/events"
	"github.com/citizenvoice/platform/internal/shared/metrics"
	"github.com/citizenvoice/platform/internal/shared/response"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/citizenvoice/platform/internal/shared/validate"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const defaultMaxUpload = 5 << 20

// Handler provides HTTP handlers for the complaint module
type Handler struct {
	repo      domain.Repository
	bus       events.EventBus
	store     attachment.Store
	locations *location.Table
	maxUpload int64
	logger    *zap.Logger
}

// NewHandler creates a new complaint handler
func NewHandler(repo domain.Repository, bus events.EventBus, store attachment.Store, locations *location.Table, maxUpload int64, logger *zap.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{
		repo:      repo,
		bus:       bus,
		store:     store,
		locations: locations,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Routes registers the complaint routes. Callers mount it behind the
// session middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListComplaints)
	r.With(sharedauth.RequireRoles(h.logger, auth.RoleCitizen)).Post("/", h.CreateComplaint)

	r.Route("/{complaintID}", func(r chi.Router) {
		r.Get("/", h.GetComplaint)
		r.Delete("/", h.DeleteComplaint)

		// Status transitions
		r.Group(func(r chi.Router) {
			r.Use(sharedauth.RequireRoles(h.logger, auth.RoleLeader, auth.RoleAdmin))
			r.Post("/start", h.StartComplaint)
			r.Post("/resolve", h.ResolveComplaint)
			r.Post("/reject", h.RejectComplaint)
		})

		r.Route("/responses", func(r chi.Router) {
			r.Get("/", h.ListResponses)
			r.Post("/", h.AddResponse)
		})

		r.Post("/attachments", h.UploadAttachment)
		r.Get("/attachments/{attachmentID}", h.GetAttachment)

		r.Get("/events", h.GetEvents)
	})

	return r
}

// --- Request/Response types ---

type CreateComplaintRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Category    domain.Category `json:"category" validate:"required,oneof=infrastructure water health education security land other"`
	Province    string          `json:"province,omitempty"`
	District    string          `json:"district,omitempty"`
	Sector      string          `json:"sector,omitempty"`
	Cell        string          `json:"cell,omitempty"`
	Village     string          `json:"village,omitempty"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ResponseRequest struct {
	Message  string    `json:"message" validate:"required,max=5000"`
	ParentID *types.ID `json:"parent_id,omitempty"`
}

// --- Handlers ---

func (h *Handler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	actor, ok := sharedauth.GetActor(r.Context())
	if !ok {
		response.Error(w, h.logger, errors.Unauthorized("authentication required"))
		return
	}

	q := r.URL.Query()
	filter := domain.ListFilter{
		Search: q.Get("search"),
	}

	switch actor.Role {
	case auth.RoleCitizen:
		id, known := actor.ID.Get()
		if !known {
			response.Error(w, h.logger, errors.Unauthorized("session has no user id"))
			return
		}
		filter.Area = geo.Condition{Mode: geo.MatchAll}
		filter.CitizenID = &id
	case auth.RoleLeader:
		filter.Area = actor.Condition()
	case auth.RoleAdmin:
		filter.Area = geo.Condition{Mode: geo.MatchAll}
		filter.Narrow = types.NewLocation(q.Get("province"), q.Get("district"), q.Get("sector"), q.Get("cell"), q.Get("village"))
	default:
		response.Error(w, h.logger, errors.Forbidden("insufficient permissions"))
		return
	}

	if s := q.Get("status"); s != "" {
		status := domain.Status(s)
		if !status.Valid() {
			response.Error(w, h.logger, errors.BadRequest("unknown status"))
			return
		}
		filter.Status = &status
	}

	if c := q.Get("category"); c != "" {
		category := domain.Category(c)
		if !category.Valid() {
			response.Error(w, h.logger, errors.BadRequest("unknown category"))
			return
		}
		filter.Category = &category
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid limit"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid offset"))
		return
	}

	complaints, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	response.List(w, complaints, total)
}

func (h *Handler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	actor, _ := sharedauth.GetActor(r.Context())

	var req CreateComplaintRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	loc := types.NewLocation(req.Province, req.District, req.Sector, req.Cell, req.Village)
	if loc.IsEmpty() {
		loc = actor.Location
	} else if err := h.locations.Validate(geo.LevelVillage, loc); err != nil {
		response.Error(w, h.logger, errors.Validation("invalid location", map[string]string{"location": err.Error()}))
		return
	}

	c, err := domain.NewComplaint(actor, req.Title, req.Description, req.Category, loc)
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), c); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	metrics.RecordComplaintCreated(string(c.Category), c.Location.Province)
	h.publishEvents(r.Context(), c)
	response.JSON(w, http.StatusCreated, c)
}

func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteComplaint(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	if !c.CanDelete(actor) {
		response.Error(w, h.logger, errors.Forbidden("complaint can no longer be withdrawn"))
		return
	}

	if err := h.repo.Delete(r.Context(), c.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	for _, a := range c.Attachments {
		if err := h.store.Delete(r.Context(), a.ObjectKey); err != nil {
			h.logger.Warn("failed to delete attachment object",
				zap.String("complaint_id", c.ID.String()),
				zap.String("key", a.ObjectKey),
				zap.Error(err),
			)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartComplaint(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(c *domain.Complaint, actor auth.Actor) error {
		return c.Start(actor)
	})
}

func (h *Handler) ResolveComplaint(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	h.transition(w, r, func(c *domain.Complaint, actor auth.Actor) error {
		return c.Resolve(actor, req.Resolution)
	})
}

func (h *Handler) RejectComplaint(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	h.transition(w, r, func(c *domain.Complaint, actor auth.Actor) error {
		return c.Reject(actor, req.Reason)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(*domain.Complaint, auth.Actor) error) {
	c, actor, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	if !c.CanTransition(actor) {
		response.Error(w, h.logger, errors.Forbidden("complaint is outside your administration scope"))
		return
	}

	from := c.Status
	if err := apply(c, actor); err != nil {
		response.Error(w, h.logger, errors.Conflict(err.Error()))
		return
	}

	evts := c.GetDomainEvents()
	if err := h.repo.Update(r.Context(), c, from, evts); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	metrics.RecordComplaintStatusChange(string(from), string(c.Status))
	h.publish(r.Context(), actor, evts)
	response.JSON(w, http.StatusOK, c)
}

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	responses := c.Responses
	if responses == nil {
		responses = []domain.Response{}
	}
	response.List(w, responses, len(responses))
}

func (h *Handler) AddResponse(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	if !c.CanRespond(actor) {
		response.Error(w, h.logger, errors.Forbidden("you cannot respond to this complaint"))
		return
	}

	var req ResponseRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	resp, err := c.Respond(actor, req.Message, req.ParentID)
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest(err.Error()))
		return
	}

	evts := c.GetDomainEvents()
	if err := h.repo.AddResponse(r.Context(), resp, evts); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	metrics.RecordResponse(string(actor.Role))
	h.publish(r.Context(), actor, evts)
	response.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	c, actor, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	if !c.CanRespond(actor) {
		response.Error(w, h.logger, errors.Forbidden("you cannot attach files to this complaint"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid multipart upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest("missing file field"))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		response.Error(w, h.logger, errors.BadRequest("attachment is too large"))
		return
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest("unreadable attachment"))
		return
	}
	ext, allowed := domain.AllowedContentTypes[contentType]
	if !allowed {
		response.Error(w, h.logger, errors.Validation("unsupported attachment", map[string]string{
			"file": "must be a JPEG, PNG or WebP image",
		}))
		return
	}

	id := types.NewID()
	key := attachment.ObjectKey(c.ID, id, ext)
	if err := h.store.Put(r.Context(), key, contentType, file); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	a, err := c.AddAttachment(actor, id, key, contentType, header.Size)
	if err != nil {
		h.discardObject(r.Context(), key)
		response.Error(w, h.logger, errors.BadRequest(err.Error()))
		return
	}

	evts := c.GetDomainEvents()
	if err := h.repo.AddAttachment(r.Context(), a, evts); err != nil {
		h.discardObject(r.Context(), key)
		response.Error(w, h.logger, err)
		return
	}

	metrics.RecordAttachment(contentType)
	h.publish(r.Context(), actor, evts)
	response.JSON(w, http.StatusCreated, a)
}

func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	attachmentID, err := types.ParseID(chi.URLParam(r, "attachmentID"))
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid attachment ID"))
		return
	}

	a, found := c.FindAttachment(attachmentID)
	if !found {
		response.Error(w, h.logger, errors.NotFound("attachment", attachmentID.String()))
		return
	}

	url, err := h.store.PresignGet(r.Context(), a.ObjectKey)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	evts := c.Events
	if evts == nil {
		evts = []domain.ComplaintEvent{}
	}
	response.List(w, evts, len(evts))
}

// --- Helpers ---

// loadVisible loads the complaint named in the URL. Complaints the actor may
// not view are reported as not found.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (*domain.Complaint, auth.Actor, bool) {
	actor, ok := sharedauth.GetActor(r.Context())
	if !ok {
		response.Error(w, h.logger, errors.Unauthorized("authentication required"))
		return nil, auth.Actor{}, false
	}

	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		response.Error(w, h.logger, errors.BadRequest("invalid complaint ID"))
		return nil, actor, false
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return nil, actor, false
	}

	allowed := c.CanView(actor)
	metrics.RecordAuthorizationDecision("complaint", r.Method, allowed)
	if !allowed {
		response.Error(w, h.logger, errors.NotFound("complaint", id.String()))
		return nil, actor, false
	}

	return c, actor, true
}

func (h *Handler) publishEvents(ctx context.Context, c *domain.Complaint) {
	actor, _ := sharedauth.GetActor(ctx)
	h.publish(ctx, actor, c.GetDomainEvents())
}

func (h *Handler) publish(ctx context.Context, actor auth.Actor, evts []domain.Event) {
	if h.bus == nil {
		return
	}

	for _, e := range evts {
		event := events.NewEvent(e.Type, "complaint", "complaint-"+e.ComplaintID.String(), e.ComplaintEvent).
			WithActor(e.ComplaintEvent.ActorID, auth.ActorType(actor.Role)).
			WithCorrelation(middleware.GetReqID(ctx))

		err := h.bus.Publish(ctx, event)
		metrics.RecordEventPublished(e.Type, err)
		if err != nil {
			h.logger.Warn("failed to publish event",
				zap.String("type", e.Type),
				zap.String("complaint_id", e.ComplaintID.String()),
				zap.Error(err),
			)
		}
	}
}

func (h *Handler) discardObject(ctx context.Context, key string) {
	if err := h.store.Delete(ctx, key); err != nil {
		h.logger.Warn("failed to discard uploaded object", zap.String("key", key), zap.Error(err))
	}
}

// sniffContentType detects the type from the first bytes and rewinds f
func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.BadRequest("invalid integer")
	}
	return n, nil
}
