package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/eve-o-provit/backend/internal/audit"
	"github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

func TestRecordInsertsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "SetModuleState", "online", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := audit.New(mock, logger.NewNoop())
	contextID := uuid.New()
	a.Record(context.Background(), contextID, "SetModuleState", "online")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "SetModuleState", "online", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	a := audit.New(mock, logger.NewNoop())

	// Record must not panic or otherwise propagate the failure.
	assert.NotPanics(t, func() {
		a.Record(context.Background(), uuid.New(), "SetModuleState", "online")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentReturnsRowsNewestFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	contextID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"context_id", "operation", "detail", "occurred_at"}).
		AddRow(contextID, "SetModuleState", "online", now).
		AddRow(contextID, "AddModule", "typeID=25920", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT (.+) FROM audit_log`).
		WithArgs(contextID, 10).
		WillReturnRows(rows)

	a := audit.New(mock, logger.NewNoop())
	entries, err := a.Recent(context.Background(), contextID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SetModuleState", entries[0].Operation)
	assert.Equal(t, "AddModule", entries[1].Operation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentPropagatesQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	contextID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM audit_log`).
		WithArgs(contextID, 10).
		WillReturnError(errors.New("syntax error"))

	a := audit.New(mock, logger.NewNoop())
	_, err = a.Recent(context.Background(), contextID, 10)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
