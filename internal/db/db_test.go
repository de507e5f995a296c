package db

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/clinscore/internal/model"
)

func TestApplyMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "PTSD"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Patient Substance History"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	var buf bytes.Buffer
	require.NoError(t, ApplyMigrations(context.Background(), mock, zerolog.New(&buf)))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), `"schema":"001_assessments.sql"`)
	assert.Contains(t, buf.String(), `"schemas":2`)
}

func TestApplyMigrations_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("PTSD").WillReturnError(assert.AnError)

	err = ApplyMigrations(context.Background(), mock, zerolog.Nop())
	assert.ErrorContains(t, err, "apply schema 001_assessments.sql")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRecordSource(t *testing.T) {
	rows := []model.Record{
		{"group_identifier": "P001", "assessment_date": "2024-01-10", "col_1_x": 2},
		{"group_identifier": "P002", "assessment_date": ""},
	}
	src := NewRecordSource(rows, []string{"group_identifier", "assessment_date", "col_1_x"})

	require.True(t, src.Next())
	vals, err := src.Values()
	require.NoError(t, err)
	assert.Equal(t, "P001", vals[0])
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), vals[1])
	assert.Equal(t, 2, vals[2])

	require.True(t, src.Next())
	vals, err = src.Values()
	require.NoError(t, err)
	assert.Nil(t, vals[1])
	assert.Nil(t, vals[2])

	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
}

func TestRecordSource_BadDate(t *testing.T) {
	src := NewRecordSource([]model.Record{{"last_use_date": "last spring"}}, []string{"last_use_date"})
	require.True(t, src.Next())
	_, err := src.Values()
	assert.ErrorContains(t, err, "last_use_date")
}

func TestCopyRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := []model.Record{
		{"group_identifier": "P001", "col_1_x": 1},
		{"group_identifier": "P002", "col_2_y": 3},
	}
	mock.ExpectCopyFrom(pgx.Identifier{"PHQ"}, []string{"col_1_x", "group_identifier", "col_2_y"}).
		WillReturnResult(2)

	n, err := CopyRecords(context.Background(), mock, "PHQ", rows, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRecords_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyRecords(context.Background(), mock, "PHQ", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
