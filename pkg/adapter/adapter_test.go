package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/dialect"
)

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	b := &BaseSQLAdapter{}

	assert.False(t, b.IsConnected())
	assert.NoError(t, b.Close())

	_, err := b.Query(context.Background(), "SELECT 1")
	assert.ErrorContains(t, err, "not established")
	assert.ErrorContains(t, b.Exec(context.Background(), "SELECT 1"), "not established")
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	b := &BaseSQLAdapter{DB: db}

	mock.ExpectQuery("SELECT bookings FROM metrics").
		WillReturnRows(sqlmock.NewRows([]string{"bookings"}).AddRow(42))

	rows, err := b.Query(context.Background(), "SELECT bookings FROM metrics")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var bookings int64
	require.NoError(t, rows.Scan(&bookings))
	assert.Equal(t, int64(42), bookings)
	assert.NoError(t, rows.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	b := &BaseSQLAdapter{DB: db, Logger: slog.New(slog.DiscardHandler)}

	mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	require.NoError(t, b.Exec(context.Background(), "CREATE TABLE t (id INTEGER)"))
	require.NoError(t, b.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeAdapter struct {
	BaseSQLAdapter
}

func (f *fakeAdapter) Connect(ctx context.Context, cfg Config) error { return nil }
func (f *fakeAdapter) Dialect() *dialect.Dialect {
	d, _ := dialect.Get("ansi")
	return d
}

func TestRegistry(t *testing.T) {
	Register("fake", func(logger *slog.Logger) Adapter {
		return &fakeAdapter{BaseSQLAdapter{Logger: logger}}
	})

	assert.True(t, IsRegistered("fake"))
	assert.Contains(t, List(), "fake")

	a, err := New(Config{Type: "fake"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ansi", a.Dialect().Name)

	_, err = New(Config{}, nil)
	assert.ErrorContains(t, err, "not specified")

	_, err = New(Config{Type: "oracle"}, nil)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, err.Error(), "metriq.yaml")
}
