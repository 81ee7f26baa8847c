package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfire-equipment/internal/domain"
)

func TestPostgresRevisions_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRevisionsRepository(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE project_config_revisions`).
		WithArgs("p-1", RevisionKindBOSAccept, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO project_config_revisions`).
		WithArgs("rev-1", "p-1", RevisionKindBOSAccept, `{"items":[]}`, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreateRevision(context.Background(), &Revision{
		RevisionID: "rev-1",
		ProjectID:  "p-1",
		Kind:       RevisionKindBOSAccept,
		Data:       json.RawMessage(`{"items":[]}`),
		ValidFrom:  at,
	})
	require.NoError(t, err)
	assert.Equal(t, "rev-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRevisions_CreateRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRevisionsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE project_config_revisions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO project_config_revisions`).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err = repo.CreateRevision(context.Background(), &Revision{
		ProjectID: "p-1", Kind: RevisionKindBOSAccept, Data: json.RawMessage(`{}`),
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRevisions_GetAtTimeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRevisionsRepository(db)
	at := time.Now()

	mock.ExpectQuery(`SELECT`).WithArgs("p-1", RevisionKindBOSAccept, at).WillReturnError(sql.ErrNoRows)

	rev, err := repo.GetRevisionAtTime(context.Background(), "p-1", RevisionKindBOSAccept, at)
	assert.Nil(t, rev)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRevisions_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRevisionsRepository(db)
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs("p-1", RevisionKindBOSAccept).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT`).WithArgs("p-1", RevisionKindBOSAccept, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"revision_id", "project_id", "kind", "data", "valid_from", "valid_to"}).
			AddRow("rev-2", "p-1", RevisionKindBOSAccept, `{"n":2}`, t2, nil).
			AddRow("rev-1", "p-1", RevisionKindBOSAccept, `{"n":1}`, t1, t2))

	revs, total, err := repo.ListRevisions(context.Background(), "p-1", RevisionKindBOSAccept, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, revs, 2)
	assert.Nil(t, revs[0].ValidTo)
	require.NotNil(t, revs[1].ValidTo)
	assert.Equal(t, t2, *revs[1].ValidTo)
	assert.JSONEq(t, `{"n":1}`, string(revs[1].Data))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRevisions_ClosesPrevious(t *testing.T) {
	repo := NewMemoryRevisionsRepository()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	_, err := repo.CreateRevision(ctx, &Revision{ProjectID: "p-1", Kind: RevisionKindBOSAccept, Data: json.RawMessage(`{"n":1}`), ValidFrom: t1})
	require.NoError(t, err)
	_, err = repo.CreateRevision(ctx, &Revision{ProjectID: "p-1", Kind: RevisionKindBOSAccept, Data: json.RawMessage(`{"n":2}`), ValidFrom: t2})
	require.NoError(t, err)

	rev, err := repo.GetRevisionAtTime(ctx, "p-1", RevisionKindBOSAccept, t1.Add(time.Minute))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(rev.Data))

	revs, total, err := repo.ListRevisions(ctx, "p-1", "", nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.JSONEq(t, `{"n":2}`, string(revs[0].Data))
}
