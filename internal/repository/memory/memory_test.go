package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camscout/internal/config"
	"camscout/internal/domain"
	"camscout/internal/repository"
	"camscout/internal/repository/repositorytest"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store := New(zap.NewNop())
	require.NoError(t, store.Configure(context.Background(), config.StoreConfig{}))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	repositorytest.Run(t, newTestStore)
}

func TestSetStreams_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	require.NoError(t, store.SetStreams(ctx, repositorytest.Fixture()))
	replacement := []domain.Stream{
		{Address: "172.16.0.1", Port: 554, ServiceName: "rtsp", State: "open"},
	}
	require.NoError(t, store.SetStreams(ctx, replacement))

	streams, err := store.GetStreams(ctx)
	require.NoError(t, err)
	assert.Equal(t, replacement, streams)
}

func TestSetStreams_CopiesInput(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	input := repositorytest.Fixture()
	require.NoError(t, store.SetStreams(ctx, input))
	input[0].State = "closed"

	streams, err := store.GetStreams(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 2)
}

func TestName(t *testing.T) {
	assert.Equal(t, "memory", New(nil).Name())
}

func TestAll_KeepsEveryService(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	require.NoError(t, store.SetStreams(ctx, repositorytest.Fixture()))

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, repositorytest.Fixture(), all)
}
