package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/complaint/domain"
	"github.com/citizenvoice/platform/internal/geo"
	apperrors "github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var complaintRowColumns = []string{
	"id", "reference_number", "title", "description", "category", "status", "citizen_id",
	"province", "district", "sector", "cell", "village", "resolution", "created_at", "updated_at", "closed_at",
}

func complaintRow(rows *pgxmock.Rows, c *domain.Complaint) *pgxmock.Rows {
	return rows.AddRow(
		c.ID.String(), c.ReferenceNumber, c.Title, c.Description, c.Category, c.Status, c.CitizenID.String(),
		c.Location.Province, c.Location.District, c.Location.Sector, c.Location.Cell, c.Location.Village,
		c.Resolution, c.CreatedAt, c.UpdatedAt, c.ClosedAt,
	)
}

func citizen() auth.Actor {
	return auth.Actor{
		ID:       types.Known(types.NewID()),
		Role:     auth.RoleCitizen,
		Location: types.NewLocation("Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze"),
	}
}

func sampleComplaint(t *testing.T) *domain.Complaint {
	t.Helper()
	owner := citizen()
	c, err := domain.NewComplaint(owner, "Street light out", "Dark since Friday", domain.CategoryInfrastructure, owner.Location)
	require.NoError(t, err)
	c.GetDomainEvents()
	return c
}

func TestSaveWritesComplaintAndTimeline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO complaints.complaints`).
		WithArgs(c.ID, c.ReferenceNumber, c.Title, c.Description, c.Category, c.Status, c.CitizenID,
			"Kigali", "Gasabo", "Remera", "Rukiri I", "Ituze",
			"", c.CreatedAt, c.UpdatedAt, c.ClosedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO complaints.events`).
		WithArgs(c.Events[0].ID, c.ID, domain.EventTypeCreated, c.CitizenID, auth.RoleCitizen,
			"Complaint filed", pgxmock.AnyArg(), c.Events[0].Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Save(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnEventFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO complaints.complaints`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO complaints.events`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = NewPostgresRepository(mock).Save(context.Background(), c)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := types.NewID()
	mock.ExpectQuery(`FROM complaints.complaints WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(complaintRowColumns))

	_, err = NewPostgresRepository(mock).FindByID(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFindByIDLoadsChildren(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)
	responder := types.NewID()
	respondedAt := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM complaints.complaints WHERE id = \$1`).
		WithArgs(c.ID).
		WillReturnRows(complaintRow(pgxmock.NewRows(complaintRowColumns), c))
	mock.ExpectQuery(`FROM complaints.responses`).
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "complaint_id", "parent_id", "author_id", "author_role", "message", "created_at",
		}).AddRow(types.NewID().String(), c.ID.String(), nil, responder.String(), auth.RoleLeader, "On it", respondedAt))
	mock.ExpectQuery(`FROM complaints.attachments`).
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "complaint_id", "object_key", "content_type", "size_bytes", "uploaded_by", "uploaded_at",
		}))
	mock.ExpectQuery(`FROM complaints.events`).
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "complaint_id", "type", "actor_id", "actor_role", "description", "data", "created_at",
		}).AddRow(c.Events[0].ID.String(), c.ID.String(), domain.EventTypeCreated, c.CitizenID.String(),
			auth.RoleCitizen, "Complaint filed", []byte(`{"category":"infrastructure"}`), c.CreatedAt))

	found, err := NewPostgresRepository(mock).FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ReferenceNumber, found.ReferenceNumber)
	require.Len(t, found.Responses, 1)
	assert.Equal(t, "On it", found.Responses[0].Message)
	assert.Nil(t, found.Responses[0].ParentID)
	assert.Empty(t, found.Attachments)
	require.Len(t, found.Events, 1)
	assert.Equal(t, "infrastructure", found.Events[0].Data["category"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStoresEventsInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)
	leader := auth.Actor{
		ID:       types.Known(types.NewID()),
		Role:     auth.RoleLeader,
		Scope:    geo.LevelSector,
		Location: types.NewLocation("Kigali", "Gasabo", "Remera", "", ""),
	}
	require.NoError(t, c.Start(leader))
	events := c.GetDomainEvents()
	require.Len(t, events, 1)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE complaints.complaints SET`).
		WithArgs(c.ID, domain.StatusInProgress, "", c.UpdatedAt, c.ClosedAt, domain.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO complaints.events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresRepository(mock).Update(context.Background(), c, domain.StatusPending, events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateZeroRows(t *testing.T) {
	tests := []struct {
		name     string
		exists   bool
		expected error
	}{
		{"status changed concurrently", true, apperrors.ErrConflict},
		{"complaint deleted", false, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			c := sampleComplaint(t)

			mock.ExpectBegin()
			mock.ExpectExec(`WHERE id = \$1 AND status = \$6`).
				WithArgs(c.ID, c.Status, c.Resolution, c.UpdatedAt, c.ClosedAt, domain.StatusInProgress).
				WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs(c.ID).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			mock.ExpectRollback()

			err = NewPostgresRepository(mock).Update(context.Background(), c, domain.StatusInProgress, nil)
			assert.ErrorIs(t, err, tt.expected)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListComposesAreaAndFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	status := domain.StatusPending
	filter := domain.ListFilter{
		Area:   geo.ConditionFor(geo.LevelDistrict, types.NewLocation("Kigali", "Gasabo", "", "", "")),
		Narrow: types.NewLocation("Kigali", "Gasabo", "Remera", "", ""),
		Status: &status,
		Search: "light",
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints.complaints WHERE district = \$1 AND sector = \$2 AND status = \$3 AND \(title ILIKE \$4 OR reference_number ILIKE \$4\)`).
		WithArgs("Gasabo", "Remera", status, "%light%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	c := sampleComplaint(t)
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$5 OFFSET \$6`).
		WithArgs("Gasabo", "Remera", status, "%light%", 50, 0).
		WillReturnRows(complaintRow(pgxmock.NewRows(complaintRowColumns), c))

	complaints, total, err := NewPostgresRepository(mock).List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, complaints, 1)
	assert.Equal(t, c.ID, complaints[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCitizenOwnComplaints(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := types.NewID()
	filter := domain.ListFilter{
		Area:      geo.Condition{Mode: geo.MatchAll},
		CitizenID: &owner,
		Limit:     10,
		Offset:    20,
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints.complaints WHERE TRUE AND citizen_id = \$1`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs(owner, 10, 20).
		WillReturnRows(pgxmock.NewRows(complaintRowColumns))

	complaints, _, err := NewPostgresRepository(mock).List(context.Background(), filter)
	require.NoError(t, err)
	assert.NotNil(t, complaints)
	assert.Empty(t, complaints)
}

func TestListZeroAreaMatchesNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints.complaints WHERE FALSE`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`WHERE FALSE ORDER BY`).
		WithArgs(50, 0).
		WillReturnRows(pgxmock.NewRows(complaintRowColumns))

	_, total, err := NewPostgresRepository(mock).List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestAddResponseWithEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)
	owner := auth.Actor{ID: types.Known(c.CitizenID), Role: auth.RoleCitizen}
	resp, err := c.Respond(owner, "Any update?", nil)
	require.NoError(t, err)
	events := c.GetDomainEvents()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO complaints.responses`).
		WithArgs(resp.ID, c.ID, resp.ParentID, c.CitizenID, auth.RoleCitizen, "Any update?", resp.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO complaints.events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresRepository(mock).AddResponse(context.Background(), resp, events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAttachmentWithEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleComplaint(t)
	owner := auth.Actor{ID: types.Known(c.CitizenID), Role: auth.RoleCitizen}
	a, err := c.AddAttachment(owner, types.NewID(), "complaints/a/b.jpg", domain.ContentTypeJPEG, 512)
	require.NoError(t, err)
	events := c.GetDomainEvents()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO complaints.attachments`).
		WithArgs(a.ID, c.ID, "complaints/a/b.jpg", domain.ContentTypeJPEG, int64(512), c.CitizenID, a.UploadedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO complaints.events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresRepository(mock).AddAttachment(context.Background(), a, events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := types.NewID()
	mock.ExpectExec(`DELETE FROM complaints.complaints WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewPostgresRepository(mock).Delete(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
