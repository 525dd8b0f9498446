package infrastructure

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/citizenvoice/platform/internal/complaint/domain"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/database"
	"github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool database.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool database.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const complaintColumns = `id, reference_number, title, description, category, status, citizen_id,
	province, district, sector, cell, village, resolution, created_at, updated_at, closed_at`

// Save saves a new complaint
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Complaint) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO complaints.complaints (` + complaintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		c.ID, c.ReferenceNumber, c.Title, c.Description, c.Category, c.Status, c.CitizenID,
		c.Location.Province, c.Location.District, c.Location.Sector, c.Location.Cell, c.Location.Village,
		c.Resolution, c.CreatedAt, c.UpdatedAt, c.ClosedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("complaint with this reference number already exists")
		}
		return errors.Wrap(err, "failed to save complaint")
	}

	for i := range c.Events {
		if err := saveEvent(ctx, tx, &c.Events[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// FindByID finds a complaint by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints.complaints WHERE id = $1`

	c, err := scanComplaint(r.pool.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("complaint", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find complaint")
	}

	if c.Responses, err = r.getResponses(ctx, id); err != nil {
		return nil, err
	}
	if c.Attachments, err = r.getAttachments(ctx, id); err != nil {
		return nil, err
	}
	if c.Events, err = r.getEvents(ctx, id); err != nil {
		return nil, err
	}

	return c, nil
}

// Update persists a status change and its events. The row is only written
// while it still has status from; a concurrent change yields a conflict.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Complaint, from domain.Status, events []domain.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE complaints.complaints SET
			status = $2, resolution = $3, updated_at = $4, closed_at = $5
		WHERE id = $1 AND status = $6`

	result, err := tx.Exec(ctx, query, c.ID, c.Status, c.Resolution, c.UpdatedAt, c.ClosedAt, from)
	if err != nil {
		return errors.Wrap(err, "failed to update complaint")
	}
	if result.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM complaints.complaints WHERE id = $1)`, c.ID).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "failed to update complaint")
		}
		if exists {
			return errors.Conflict("complaint status was changed by another request")
		}
		return errors.NotFound("complaint", c.ID.String())
	}

	if err := saveEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Delete deletes a complaint; responses, attachments and events cascade
func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM complaints.complaints WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete complaint")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("complaint", id.String())
	}
	return nil
}

// List lists complaints inside filter.Area, newest first
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Complaint, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	addCondition := func(c geo.Condition) {
		clause, condArgs := c.SQL(argNum)
		conditions = append(conditions, clause)
		args = append(args, condArgs...)
		argNum += len(condArgs)
	}
	addCondition(filter.Area)
	if !filter.Narrow.IsEmpty() {
		addCondition(geo.Narrowing(filter.Narrow))
	}

	if filter.CitizenID != nil {
		conditions = append(conditions, fmt.Sprintf("citizen_id = $%d", argNum))
		args = append(args, *filter.CitizenID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, *filter.Category)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR reference_number ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM complaints.complaints`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count complaints")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM complaints.complaints%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		complaintColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list complaints")
	}
	defer rows.Close()

	complaints := []domain.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan complaint")
		}
		complaints = append(complaints, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to iterate complaints")
	}

	return complaints, total, nil
}

// AddResponse stores a response and its events
func (r *PostgresRepository) AddResponse(ctx context.Context, resp *domain.Response, events []domain.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO complaints.responses (id, complaint_id, parent_id, author_id, author_role, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, query,
		resp.ID, resp.ComplaintID, resp.ParentID, resp.AuthorID, resp.AuthorRole, resp.Message, resp.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add response")
	}

	if err := saveEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// AddAttachment stores attachment metadata and its events
func (r *PostgresRepository) AddAttachment(ctx context.Context, a *domain.Attachment, events []domain.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO complaints.attachments (id, complaint_id, object_key, content_type, size_bytes, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, query,
		a.ID, a.ComplaintID, a.ObjectKey, a.ContentType, a.Size, a.UploadedBy, a.UploadedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add attachment")
	}

	if err := saveEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (r *PostgresRepository) getResponses(ctx context.Context, complaintID types.ID) ([]domain.Response, error) {
	query := `
		SELECT id, complaint_id, parent_id, author_id, author_role, message, created_at
		FROM complaints.responses
		WHERE complaint_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get responses")
	}
	defer rows.Close()

	var responses []domain.Response
	for rows.Next() {
		var resp domain.Response
		if err := rows.Scan(
			&resp.ID, &resp.ComplaintID, &resp.ParentID, &resp.AuthorID, &resp.AuthorRole, &resp.Message, &resp.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan response")
		}
		responses = append(responses, resp)
	}

	return responses, rows.Err()
}

func (r *PostgresRepository) getAttachments(ctx context.Context, complaintID types.ID) ([]domain.Attachment, error) {
	query := `
		SELECT id, complaint_id, object_key, content_type, size_bytes, uploaded_by, uploaded_at
		FROM complaints.attachments
		WHERE complaint_id = $1
		ORDER BY uploaded_at`

	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get attachments")
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(
			&a.ID, &a.ComplaintID, &a.ObjectKey, &a.ContentType, &a.Size, &a.UploadedBy, &a.UploadedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan attachment")
		}
		attachments = append(attachments, a)
	}

	return attachments, rows.Err()
}

func (r *PostgresRepository) getEvents(ctx context.Context, complaintID types.ID) ([]domain.ComplaintEvent, error) {
	query := `
		SELECT id, complaint_id, type, actor_id, actor_role, description, data, created_at
		FROM complaints.events
		WHERE complaint_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	defer rows.Close()

	var events []domain.ComplaintEvent
	for rows.Next() {
		var e domain.ComplaintEvent
		var data []byte
		if err := rows.Scan(
			&e.ID, &e.ComplaintID, &e.Type, &e.ActorID, &e.ActorRole, &e.Description, &data, &e.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, errors.Wrap(err, "failed to decode event data")
			}
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func saveEvents(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	for i := range events {
		if err := saveEvent(ctx, tx, &events[i].ComplaintEvent); err != nil {
			return err
		}
	}
	return nil
}

func saveEvent(ctx context.Context, tx pgx.Tx, e *domain.ComplaintEvent) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	query := `
		INSERT INTO complaints.events (id, complaint_id, type, actor_id, actor_role, description, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.ComplaintID, e.Type, e.ActorID, e.ActorRole, e.Description, dataJSON, e.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save event")
	}
	return nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	c := &domain.Complaint{}
	err := row.Scan(
		&c.ID, &c.ReferenceNumber, &c.Title, &c.Description, &c.Category, &c.Status, &c.CitizenID,
		&c.Location.Province, &c.Location.District, &c.Location.Sector, &c.Location.Cell, &c.Location.Village,
		&c.Resolution, &c.CreatedAt, &c.UpdatedAt, &c.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
