package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupConfigStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresConfigStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresConfigStore(db, zap.NewNop())
}

func TestPostgresConfigStore_Read(t *testing.T) {
	db, mock, store := setupConfigStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"record", "version"}).
		AddRow([]byte(`{"sys1_solar_panel_make":"REC","sys1_solar_panel_qty":24,"sys1_inv_max_continuous_output":1.21}`), int64(7))
	mock.ExpectQuery(`SELECT record, version`).WithArgs("p-1").WillReturnRows(rows)

	record, version, err := store.Read(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
	assert.Equal(t, "REC", record["sys1_solar_panel_make"])
	assert.Equal(t, int64(24), record["sys1_solar_panel_qty"])
	assert.Equal(t, 1.21, record["sys1_inv_max_continuous_output"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStore_ReadMissingProjectIsEmpty(t *testing.T) {
	db, mock, store := setupConfigStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT record, version`).WithArgs("p-new").WillReturnError(sql.ErrNoRows)

	record, version, err := store.Read(context.Background(), "p-new")
	require.NoError(t, err)
	assert.Empty(t, record)
	assert.Zero(t, version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStore_Write(t *testing.T) {
	db, mock, store := setupConfigStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO project_equipment_configs`).
		WithArgs("p-1", `{"sys1_battery_1_qty":null,"sys1_solar_panel_make":"REC"}`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	version, err := store.Write(context.Background(), "p-1", map[string]any{
		"sys1_solar_panel_make": "REC",
		"sys1_battery_1_qty":    nil,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStore_WriteError(t *testing.T) {
	db, mock, store := setupConfigStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO project_equipment_configs`).WillReturnError(errors.New("connection reset"))

	_, err := store.Write(context.Background(), "p-1", map[string]any{"utility": "SRP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfigStore_RejectsEmpty(t *testing.T) {
	db, _, store := setupConfigStore(t)
	defer db.Close()

	_, err := store.Write(context.Background(), "p-1", nil)
	assert.Error(t, err)
	_, _, err = store.Read(context.Background(), "")
	assert.Error(t, err)
}

func TestMemoryConfigStore_NullClears(t *testing.T) {
	store := NewMemoryConfigStore()
	ctx := context.Background()

	v, err := store.Write(ctx, "p-1", map[string]any{"utility": "SRP", "sys1_solar_panel_make": "REC"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = store.Write(ctx, "p-1", map[string]any{"sys1_solar_panel_make": nil, "sys1_solar_panel_model": ""})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	record, version, err := store.Read(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"utility": "SRP"}, record)
	assert.Equal(t, int64(2), version)
}
