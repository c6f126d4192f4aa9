// ABOUTME: Tests for lazy first-visit loading
// ABOUTME: Verifies one fetch per kind, forced refreshes, and saved presets
package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/devicedrop/models"
)

type staticPresets map[models.Kind]Preset

func (p staticPresets) Preset(kind models.Kind) (Preset, bool) {
	v, ok := p[kind]
	return v, ok
}

func TestEnsureLoadedFetchesOnceUnderConcurrency(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	api.listHook = func(models.QuerySpec) {
		once.Do(func() { close(entered) })
		<-release
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.EnsureLoaded(ctx, models.KindRequest)
			errs <- err
		}()
	}
	<-entered
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, api.listCount())

	page, err := l.EnsureLoaded(ctx, models.KindRequest)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, api.listCount(), "loaded kinds are never fetched automatically again")
}

func TestEnsureLoadedIsPerKind(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	_, err := l.EnsureLoaded(ctx, models.KindDevice)
	require.NoError(t, err)
	_, err = l.EnsureLoaded(ctx, models.KindUser)
	require.NoError(t, err)
	_, err = l.EnsureLoaded(ctx, models.KindDevice)
	require.NoError(t, err)

	assert.Equal(t, 2, api.listCount())
}

func TestForceRefreshAlwaysFetches(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	_, err := l.EnsureLoaded(ctx, models.KindRequest)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = l.ForceRefresh(ctx, models.KindRequest)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, api.listCount())
	assert.True(t, f.Snapshot(models.KindRequest).Loaded)
}

func TestForceRefreshOnUnloadedKindMarksLoaded(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	_, err := l.ForceRefresh(ctx, models.KindUser)
	require.NoError(t, err)
	_, err = l.EnsureLoaded(ctx, models.KindUser)
	require.NoError(t, err)

	assert.Equal(t, 1, api.listCount())
}

func TestForceRefreshKeepsCurrentView(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	_, err := f.ListPage(ctx, models.KindDevice, 1, map[string]string{"status": "approved"}, "")
	require.NoError(t, err)

	_, err = l.ForceRefresh(ctx, models.KindDevice)
	require.NoError(t, err)

	require.Equal(t, 2, api.listCount())
	assert.Equal(t, "approved", api.listCalls[1].Filters["status"])
}

func TestFailedFirstLoadIsNotRetriedAutomatically(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)
	ctx := context.Background()

	api.listErr = errNetwork
	_, err := l.EnsureLoaded(ctx, models.KindDevice)
	assert.ErrorIs(t, err, ErrFetchFailed)

	_, err = l.EnsureLoaded(ctx, models.KindDevice)
	assert.NoError(t, err)
	assert.Equal(t, 1, api.listCount())

	api.listErr = nil
	page, err := l.ForceRefresh(ctx, models.KindDevice)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestEnsureLoadedUsesPreset(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f, WithPresets(staticPresets{
		models.KindDevice: {Filters: map[string]string{"status": "pending", "bogus": "x"}},
	}))

	page, err := l.EnsureLoaded(context.Background(), models.KindDevice)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, map[string]string{"status": "pending"}, api.listCalls[0].Filters)
}

func TestLoadAll(t *testing.T) {
	f, api := seededFacade(t)
	l := NewLoader(f)

	require.NoError(t, l.LoadAll(context.Background()))
	assert.Equal(t, len(models.AllKinds), api.listCount())

	for _, kind := range models.AllKinds {
		assert.True(t, f.Snapshot(kind).Loaded, "kind %s", kind)
	}
}
