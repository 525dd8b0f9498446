package domain

import (
	"time"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// Response is a message on a complaint. ParentID threads replies.
type Response struct {
	ID          types.ID  `json:"id"`
	ComplaintID types.ID  `json:"complaint_id"`
	ParentID    *types.ID `json:"parent_id,omitempty"`
	AuthorID    types.ID  `json:"author_id"`
	AuthorRole  auth.Role `json:"author_role"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Accepted attachment content types
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeWebP = "image/webp"
)

// AllowedContentTypes maps accepted content types to file extensions
var AllowedContentTypes = map[string]string{
	ContentTypeJPEG: ".jpg",
	ContentTypePNG:  ".png",
	ContentTypeWebP: ".webp",
}

// Attachment is an image stored in object storage
type Attachment struct {
	ID          types.ID  `json:"id"`
	ComplaintID types.ID  `json:"complaint_id"`
	ObjectKey   string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  types.ID  `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// EventType defines types of complaint events
type EventType string

const (
	EventTypeCreated         EventType = "complaint.created"
	EventTypeStatusChanged   EventType = "complaint.status_changed"
	EventTypeResponded       EventType = "complaint.responded"
	EventTypeAttachmentAdded EventType = "complaint.attachment_added"
)

// ComplaintEvent is an entry in the complaint timeline
type ComplaintEvent struct {
	ID          types.ID       `json:"id"`
	ComplaintID types.ID       `json:"complaint_id"`
	Type        EventType      `json:"type"`
	ActorID     types.ID       `json:"actor_id"`
	ActorRole   auth.Role      `json:"actor_role"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Event is a domain event for publishing
type Event struct {
	Type           string         `json:"type"`
	ComplaintID    types.ID       `json:"complaint_id"`
	ComplaintEvent ComplaintEvent `json:"complaint_event"`
}
