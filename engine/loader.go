// ABOUTME: Lazy first-visit loading of each collection plus explicit refresh
// ABOUTME: Concurrent first loads of one kind share a single fetch
package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/harperreed/devicedrop/models"
)

// Preset is a saved default view of a collection.
type Preset struct {
	Filters map[string]string `json:"filters,omitempty"`
	Search  string            `json:"search,omitempty"`
}

// PresetSource supplies saved presets for the default spec.
type PresetSource interface {
	Preset(kind models.Kind) (Preset, bool)
}

// Loader loads each kind the first time its screen is shown.
type Loader struct {
	facade  *Facade
	presets PresetSource
	group   singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPresets makes the default spec honour saved presets.
func WithPresets(p PresetSource) LoaderOption {
	return func(l *Loader) { l.presets = p }
}

// NewLoader creates a loader on top of f.
func NewLoader(f *Facade, opts ...LoaderOption) *Loader {
	l := &Loader{facade: f}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultSpec is page 1 of kind with the saved preset, if any.
func (l *Loader) DefaultSpec(kind models.Kind) models.QuerySpec {
	var p Preset
	if l.presets != nil {
		p, _ = l.presets.Preset(kind)
	}
	return BuildQuery(kind, 1, l.facade.pageSize, p.Filters, p.Search)
}

// EnsureLoaded fetches the default page of kind unless the first load has
// already happened or is in flight. It returns whatever page is cached.
// The kind is marked loaded even when the fetch fails; ForceRefresh is the
// way to retry.
func (l *Loader) EnsureLoaded(ctx context.Context, kind models.Kind) (*models.PageResult, error) {
	st, err := l.facade.store(kind)
	if err != nil {
		return nil, err
	}
	if st.HasLoadedOnce() {
		return st.Snapshot().Page, nil
	}

	v, err, _ := l.group.Do(string(kind), func() (any, error) {
		if !st.claim() {
			return st.Snapshot().Page, nil
		}
		defer st.MarkLoadedOnce()
		return l.facade.list(ctx, l.DefaultSpec(kind), false)
	})
	if errors.Is(err, ErrSuperseded) {
		err = nil
	}
	page, _ := v.(*models.PageResult)
	return page, err
}

// ForceRefresh always fetches the current page of kind, bypassing the cache,
// and marks the kind loaded.
func (l *Loader) ForceRefresh(ctx context.Context, kind models.Kind) (*models.PageResult, error) {
	st, err := l.facade.store(kind)
	if err != nil {
		return nil, err
	}
	spec, ok := st.CurrentSpec()
	if !ok {
		spec = l.DefaultSpec(kind)
	}
	page, err := l.facade.list(ctx, spec, true)
	st.MarkLoadedOnce()
	return page, err
}

// LoadAll ensures several kinds concurrently and returns the first error.
func (l *Loader) LoadAll(ctx context.Context, kinds ...models.Kind) error {
	if len(kinds) == 0 {
		kinds = models.AllKinds
	}
	var g errgroup.Group
	for _, kind := range kinds {
		g.Go(func() error {
			_, err := l.EnsureLoaded(ctx, kind)
			return err
		})
	}
	return g.Wait()
}
