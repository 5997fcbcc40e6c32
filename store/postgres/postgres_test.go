package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectByID = "SELECT id, run_id, node_id, outputs, metadata, timestamp, version FROM node_results WHERE id = $1"
const selectByRun = "SELECT id, run_id, node_id, outputs, metadata, timestamp, version FROM node_results WHERE run_id = $1 ORDER BY timestamp ASC"

var columns = []string{"id", "run_id", "node_id", "outputs", "metadata", "timestamp", "version"}

func TestPostgresResultStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewPostgresResultStoreWithPool(mock, "")

	rec := &store.Record{
		ID:        "rec-1",
		RunID:     "run-1",
		NodeID:    "prompt",
		Outputs:   map[string]data.Data{"text": data.Text("hi")},
		Metadata:  map[string]any{"type": "prompt"},
		Timestamp: time.Now(),
		Version:   1,
	}
	outputsJSON, _ := json.Marshal(rec.Outputs)
	metadataJSON, _ := json.Marshal(rec.Metadata)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO node_results")).
		WithArgs(rec.ID, rec.RunID, rec.NodeID, outputsJSON, metadataJSON, rec.Timestamp, rec.Version).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, rs.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResultStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewPostgresResultStoreWithPool(mock, "node_results")
	timestamp := time.Now()

	rows := pgxmock.NewRows(columns).
		AddRow("rec-1", "run-1", "model", []byte(`{"reply":{"type":"string","value":"ok"}}`), []byte(`{"type":"chat-model"}`), timestamp, 1)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).WithArgs("rec-1").WillReturnRows(rows)

	loaded, err := rs.Load(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "model", loaded.NodeID)
	assert.Equal(t, data.Text("ok"), loaded.Outputs["reply"])
	assert.Equal(t, "chat-model", loaded.Metadata["type"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResultStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(mock pgxmock.PgxPoolIface)
		want    error
		message string
	}{
		{
			name: "not found",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByID)).WithArgs("rec-1").WillReturnError(pgx.ErrNoRows)
			},
			want: store.ErrNotFound,
		},
		{
			name: "database error",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByID)).WithArgs("rec-1").WillReturnError(errors.New("connection refused"))
			},
			message: "failed to load record",
		},
		{
			name: "invalid outputs",
			expect: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(columns).AddRow("rec-1", "run-1", "n", []byte("{invalid"), nil, time.Now(), 1)
				mock.ExpectQuery(regexp.QuoteMeta(selectByID)).WithArgs("rec-1").WillReturnRows(rows)
			},
			message: "failed to unmarshal outputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.expect(mock)
			loaded, err := NewPostgresResultStoreWithPool(mock, "").Load(context.Background(), "rec-1")
			assert.Nil(t, loaded)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.message != "" {
				assert.ErrorContains(t, err, tt.message)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresResultStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewPostgresResultStoreWithPool(mock, "")
	timestamp := time.Now()

	rows := pgxmock.NewRows(columns).
		AddRow("rec-1", "run-1", "a", []byte(`{}`), nil, timestamp, 1).
		AddRow("rec-2", "run-1", "b", []byte(`{"n":{"type":"number","value":2}}`), nil, timestamp, 1)
	mock.ExpectQuery(regexp.QuoteMeta(selectByRun)).WithArgs("run-1").WillReturnRows(rows)

	list, err := rs.List(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].NodeID)
	assert.Equal(t, data.Data{Type: data.Number, Value: 2.0}, list[1].Outputs["n"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResultStore_DeleteClearSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := NewPostgresResultStoreWithPool(mock, "")
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS node_results")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM node_results WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM node_results WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnError(errors.New("lock timeout"))

	require.NoError(t, rs.InitSchema(ctx))
	require.NoError(t, rs.Delete(ctx, "rec-1"))
	assert.ErrorContains(t, rs.Clear(ctx, "run-1"), "failed to clear records")
	assert.NoError(t, mock.ExpectationsWereMet())
}
