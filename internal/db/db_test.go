package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingRetriesUntilReady(t *testing.T) {
	p := &flakyPinger{failures: 2}
	require.NoError(t, Ping(context.Background(), p, 5))
	assert.Equal(t, 3, p.calls)
}

func TestPingGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 10}
	err := Ping(context.Background(), p, 2)
	require.Error(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestMigrateRunsSchema(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fundraisers").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}
