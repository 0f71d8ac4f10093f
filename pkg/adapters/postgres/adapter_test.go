package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/adapter"
)

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	a, err := adapter.New(adapter.Config{Type: "postgres"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, a)
}

func TestConnect_RequiresDSN(t *testing.T) {
	a := New(nil)
	err := a.Connect(context.Background(), adapter.Config{Type: "postgres"})
	assert.ErrorContains(t, err, "target.dsn")
}

func TestDialect(t *testing.T) {
	d := New(nil).Dialect()
	require.NotNil(t, d)
	assert.Equal(t, "postgres", d.Name)
	assert.Equal(t, "public", d.DefaultSchema)
}
