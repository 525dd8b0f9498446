package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/google/uuid"
)

// Category classifies a complaint
type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryWater          Category = "water"
	CategoryHealth         Category = "health"
	CategoryEducation      Category = "education"
	CategorySecurity       Category = "security"
	CategoryLand           Category = "land"
	CategoryOther          Category = "other"
)

// Categories lists every category
var Categories = []Category{
	CategoryInfrastructure, CategoryWater, CategoryHealth, CategoryEducation,
	CategorySecurity, CategoryLand, CategoryOther,
}

// Valid reports whether c is a defined category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status defines the status of a complaint
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
}

// Valid reports whether s is a defined status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransitionTo reports whether s may move to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Complaint is the aggregate root for citizen complaints
type Complaint struct {
	ID              types.ID       `json:"id"`
	ReferenceNumber string         `json:"reference_number"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        Category       `json:"category"`
	Status          Status         `json:"status"`
	CitizenID       types.ID       `json:"citizen_id"`
	Location        types.Location `json:"location"`
	Resolution      string         `json:"resolution,omitempty"`

	Responses   []Response       `json:"responses,omitempty"`
	Attachments []Attachment     `json:"attachments,omitempty"`
	Events      []ComplaintEvent `json:"events,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	// Domain events (not persisted, published after save)
	domainEvents []Event
}

// NewComplaint files a complaint on behalf of a citizen
func NewComplaint(citizen auth.Actor, title, description string, category Category, loc types.Location) (*Complaint, error) {
	citizenID, ok := citizen.ID.Get()
	if !ok {
		return nil, fmt.Errorf("citizen id is required")
	}
	if citizen.Role != auth.RoleCitizen {
		return nil, fmt.Errorf("only citizens file complaints")
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if loc.IsEmpty() {
		return nil, fmt.Errorf("location is required")
	}

	now := time.Now()
	c := &Complaint{
		ID:              types.NewID(),
		ReferenceNumber: generateReferenceNumber(now),
		Title:           strings.TrimSpace(title),
		Description:     description,
		Category:        category,
		Status:          StatusPending,
		CitizenID:       citizenID,
		Location:        loc,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	c.addEvent(EventTypeCreated, citizen, "Complaint filed", map[string]any{
		"category": category,
		"province": loc.Province,
		"district": loc.District,
	})

	return c, nil
}

// GeoLocation implements geo.Tagged
func (c Complaint) GeoLocation() types.Location {
	return c.Location
}

// IsOwner reports whether actor filed the complaint
func (c *Complaint) IsOwner(actor auth.Actor) bool {
	return actor.Role == auth.RoleCitizen && actor.ID.Same(types.Known(c.CitizenID))
}

// CanView reports whether actor may read the complaint
func (c *Complaint) CanView(actor auth.Actor) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCitizen:
		return c.IsOwner(actor)
	case auth.RoleLeader:
		return actor.Visibility()(c.Location)
	}
	return false
}

// CanRespond reports whether actor may post a response
func (c *Complaint) CanRespond(actor auth.Actor) bool {
	return c.CanView(actor)
}

// CanTransition reports whether actor may change the status
func (c *Complaint) CanTransition(actor auth.Actor) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleLeader:
		return actor.Visibility()(c.Location)
	}
	return false
}

// CanDelete reports whether actor may withdraw the complaint. Owners may
// only withdraw while it is still pending.
func (c *Complaint) CanDelete(actor auth.Actor) bool {
	if actor.Role == auth.RoleAdmin {
		return true
	}
	return c.IsOwner(actor) && c.Status == StatusPending
}

// Start moves a pending complaint into progress
func (c *Complaint) Start(actor auth.Actor) error {
	return c.transition(actor, StatusInProgress, "Work started")
}

// Resolve closes the complaint as resolved
func (c *Complaint) Resolve(actor auth.Actor, resolution string) error {
	if strings.TrimSpace(resolution) == "" {
		return fmt.Errorf("resolution is required")
	}
	if err := c.transition(actor, StatusResolved, resolution); err != nil {
		return err
	}
	c.Resolution = resolution
	return nil
}

// Reject closes the complaint as rejected
func (c *Complaint) Reject(actor auth.Actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reason is required")
	}
	if err := c.transition(actor, StatusRejected, reason); err != nil {
		return err
	}
	c.Resolution = reason
	return nil
}

func (c *Complaint) transition(actor auth.Actor, next Status, description string) error {
	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot move complaint from %s to %s", c.Status, next)
	}

	now := time.Now()
	old := c.Status
	c.Status = next
	c.UpdatedAt = now
	if next.IsTerminal() {
		c.ClosedAt = &now
	}

	c.addEvent(EventTypeStatusChanged, actor, description, map[string]any{
		"old_status": old,
		"new_status": next,
	})
	return nil
}

// Respond adds a message. parentID, when set, must name a response of this
// complaint.
func (c *Complaint) Respond(actor auth.Actor, message string, parentID *types.ID) (*Response, error) {
	authorID, ok := actor.ID.Get()
	if !ok {
		return nil, fmt.Errorf("author id is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	if parentID != nil && c.findResponse(*parentID) == nil {
		return nil, fmt.Errorf("parent response not found on this complaint")
	}

	now := time.Now()
	r := Response{
		ID:          types.NewID(),
		ComplaintID: c.ID,
		ParentID:    parentID,
		AuthorID:    authorID,
		AuthorRole:  actor.Role,
		Message:     strings.TrimSpace(message),
		CreatedAt:   now,
	}
	c.Responses = append(c.Responses, r)
	c.UpdatedAt = now

	data := map[string]any{"response_id": r.ID}
	if parentID != nil {
		data["parent_id"] = *parentID
	}
	c.addEvent(EventTypeResponded, actor, "Response posted", data)

	return &r, nil
}

func (c *Complaint) findResponse(id types.ID) *Response {
	for i := range c.Responses {
		if c.Responses[i].ID == id {
			return &c.Responses[i]
		}
	}
	return nil
}

// AddAttachment records an uploaded image. The object must already be stored.
func (c *Complaint) AddAttachment(actor auth.Actor, id types.ID, objectKey, contentType string, size int64) (*Attachment, error) {
	uploaderID, ok := actor.ID.Get()
	if !ok {
		return nil, fmt.Errorf("uploader id is required")
	}
	if _, allowed := AllowedContentTypes[contentType]; !allowed {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	if size <= 0 {
		return nil, fmt.Errorf("attachment is empty")
	}

	now := time.Now()
	a := Attachment{
		ID:          id,
		ComplaintID: c.ID,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  uploaderID,
		UploadedAt:  now,
	}
	c.Attachments = append(c.Attachments, a)
	c.UpdatedAt = now

	c.addEvent(EventTypeAttachmentAdded, actor, "Attachment added", map[string]any{
		"attachment_id": a.ID,
		"content_type":  contentType,
		"size":          size,
	})

	return &a, nil
}

// FindAttachment returns the attachment with id
func (c *Complaint) FindAttachment(id types.ID) (*Attachment, bool) {
	for i := range c.Attachments {
		if c.Attachments[i].ID == id {
			return &c.Attachments[i], true
		}
	}
	return nil, false
}

// GetDomainEvents returns and clears domain events
func (c *Complaint) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *Complaint) addEvent(eventType EventType, actor auth.Actor, description string, data map[string]any) {
	actorID, _ := actor.ID.Get()
	event := ComplaintEvent{
		ID:          types.NewID(),
		ComplaintID: c.ID,
		Type:        eventType,
		ActorID:     actorID,
		ActorRole:   actor.Role,
		Description: description,
		Data:        data,
		Timestamp:   time.Now(),
	}

	c.Events = append(c.Events, event)
	c.domainEvents = append(c.domainEvents, Event{
		Type:           string(eventType),
		ComplaintID:    c.ID,
		ComplaintEvent: event,
	})
}

// generateReferenceNumber builds a human-facing reference such as
// CMP-2026-1A2B3C4D
func generateReferenceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("CMP-%d-%s", now.Year(), suffix)
}
