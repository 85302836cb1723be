// Package repositorytest holds the behavior every repository.Store backend
// must exhibit, runnable against any backend from its own tests.
package repositorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camscout/internal/domain"
	"camscout/internal/repository"
)

// NewStoreFunc returns a configured, empty store. It is called once per subtest.
type NewStoreFunc func(t *testing.T) repository.Store

// Fixture returns a mixed working set: two open RTSP streams (one of them
// fully resolved), one closed RTSP port and one open non-RTSP service.
func Fixture() []domain.Stream {
	return []domain.Stream{
		{Address: "10.0.0.1", Port: 554, ServiceName: "rtsp", Protocol: "tcp", State: "open", Product: "Hikvision"},
		{Address: "10.0.0.2", Port: 8554, ServiceName: "rtsp", Protocol: "tcp", State: "open",
			Username: "admin", Password: "admin", Route: "live.sdp", IDsFound: true, PathFound: true},
		{Address: "10.0.0.3", Port: 554, ServiceName: "rtsp", Protocol: "tcp", State: "closed"},
		{Address: "10.0.0.4", Port: 80, ServiceName: "http", Protocol: "tcp", State: "open"},
	}
}

// Run executes the shared store behavior tests
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("GetStreamsFiltersOpenRTSP", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.SetStreams(ctx, Fixture()))

		streams, err := store.GetStreams(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, domain.FilterOpenRTSP(Fixture()), streams)

		valid, err := store.GetValidStreams(ctx)
		require.NoError(t, err)
		require.Len(t, valid, 1)
		assert.Equal(t, "10.0.0.2", valid[0].Address)
		assert.Subset(t, streams, valid)
	})

	t.Run("GetStreamsIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.SetStreams(ctx, Fixture()))

		first, err := store.GetStreams(ctx)
		require.NoError(t, err)
		second, err := store.GetStreams(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("UpdateStreamOnlyTouchesItsKey", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.SetStreams(ctx, Fixture()))

		before, err := store.GetStreams(ctx)
		require.NoError(t, err)

		target := before[0]
		if target.Address != "10.0.0.1" {
			target = before[1]
		}
		updated := target.WithCredentials("root", "pass", true)
		require.NoError(t, store.UpdateStream(ctx, updated))

		after, err := store.GetStreams(ctx)
		require.NoError(t, err)
		require.Len(t, after, len(before))
		for _, s := range after {
			if s.Key() == updated.Key() {
				assert.Equal(t, updated, s)
				continue
			}
			assert.Contains(t, before, s)
		}
	})

	t.Run("SetStreamsCollapsesDuplicateKeys", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		dup := []domain.Stream{
			{Address: "10.0.0.9", Port: 554, ServiceName: "rtsp", Protocol: "tcp", State: "open", Product: "first"},
			{Address: "10.0.0.9", Port: 554, ServiceName: "rtsp", Protocol: "tcp", State: "open", Product: "second"},
		}
		require.NoError(t, store.SetStreams(ctx, dup))

		streams, err := store.GetStreams(ctx)
		require.NoError(t, err)
		require.Len(t, streams, 1)
		assert.Equal(t, "second", streams[0].Product)
	})

	t.Run("UpdateStreamUnknownKeyIsNoop", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.SetStreams(ctx, Fixture()))

		ghost := domain.Stream{Address: "10.9.9.9", Port: 554, ServiceName: "rtsp", State: "open", IDsFound: true}
		require.NoError(t, store.UpdateStream(ctx, ghost))

		streams, err := store.GetStreams(ctx)
		require.NoError(t, err)
		assert.NotContains(t, streams, ghost)
		assert.Len(t, streams, 2)
	})

	t.Run("ConcurrentUpdates", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		const n = 50
		streams := make([]domain.Stream, n)
		for i := range streams {
			streams[i] = domain.Stream{
				Address:     fmt.Sprintf("10.1.%d.%d", i/250, i%250+1),
				Port:        554,
				ServiceName: "rtsp",
				State:       "open",
			}
		}
		require.NoError(t, store.SetStreams(ctx, streams))

		var wg sync.WaitGroup
		for i := range streams {
			wg.Add(1)
			go func(s domain.Stream, i int) {
				defer wg.Done()
				s = s.WithCredentials(fmt.Sprintf("user%d", i), fmt.Sprintf("pass%d", i), true)
				s = s.WithRoute(fmt.Sprintf("route%d", i), true)
				assert.NoError(t, store.UpdateStream(ctx, s))
			}(streams[i], i)
		}
		wg.Wait()

		valid, err := store.GetValidStreams(ctx)
		require.NoError(t, err)
		require.Len(t, valid, n)

		byKey := make(map[domain.Key]domain.Stream, n)
		for _, s := range valid {
			byKey[s.Key()] = s
		}
		for i, s := range streams {
			got, ok := byKey[s.Key()]
			require.True(t, ok, "missing %s", s.Key())
			assert.Equal(t, fmt.Sprintf("user%d", i), got.Username)
			assert.Equal(t, fmt.Sprintf("pass%d", i), got.Password)
			assert.Equal(t, fmt.Sprintf("route%d", i), got.Route)
		}
	})

	t.Run("HasChanged", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		tracker, ok := store.(repository.ChangeTracker)
		if !ok {
			t.Skipf("%s does not track changes", store.Name())
		}
		require.NoError(t, store.SetStreams(ctx, Fixture()))

		streams, err := store.GetStreams(ctx)
		require.NoError(t, err)
		var snapshot domain.Stream
		for _, s := range streams {
			if s.Address == "10.0.0.1" {
				snapshot = s
			}
		}

		changed, err := tracker.HasChanged(ctx, snapshot)
		require.NoError(t, err)
		assert.False(t, changed)

		require.NoError(t, store.UpdateStream(ctx, snapshot.WithRoute("h264", true)))
		changed, err = tracker.HasChanged(ctx, snapshot)
		require.NoError(t, err)
		assert.True(t, changed)

		ghost := domain.Stream{Address: "10.9.9.9", Port: 554}
		changed, err = tracker.HasChanged(ctx, ghost)
		require.NoError(t, err)
		assert.True(t, changed)
	})
}
