// ABOUTME: Per-kind page cache with first-load tracking and stale-response discard
// ABOUTME: Also keeps a bounded LRU index of recently seen records for status lookups
package engine

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/harperreed/devicedrop/models"
)

const (
	defaultIndexSize = 512
	defaultIndexTTL  = 30 * time.Minute
)

// Store caches the last fetched page of one kind. The facade is its only
// writer; everything handed out is a copy.
type Store struct {
	kind models.Kind

	mu      sync.Mutex
	spec    *models.QuerySpec
	page    *models.PageResult
	loaded  bool
	claimed bool

	// current is the most recently requested spec; gen tags each request so
	// that only the newest one may commit.
	current    models.QuerySpec
	hasCurrent bool
	gen        uint64

	// touched holds records mutated since the current request was issued; a
	// nil entry marks a removal. A page fetched before the mutation must not
	// undo it when it commits.
	touched map[string]*models.Record
	// refreshing marks a cache-bypassing request; its commit rebuilds the
	// record index from scratch.
	refreshing bool

	loadedAt time.Time
	lastErr  error

	index *expirable.LRU[string, *models.Record]
}

// Snapshot is a read-only view of a store for rendering.
type Snapshot struct {
	Kind     models.Kind
	Spec     *models.QuerySpec
	Page     *models.PageResult
	Loaded   bool
	Loading  bool
	LoadedAt time.Time
	LastErr  error
}

func newStore(kind models.Kind, indexSize int, indexTTL time.Duration) *Store {
	if indexSize <= 0 {
		indexSize = defaultIndexSize
	}
	if indexTTL <= 0 {
		indexTTL = defaultIndexTTL
	}
	return &Store{
		kind:  kind,
		index: expirable.NewLRU[string, *models.Record](indexSize, nil, indexTTL),
	}
}

// Kind returns the kind this store caches.
func (s *Store) Kind() models.Kind { return s.kind }

// GetPage returns the cached page only when spec exactly matches the spec
// that produced it.
func (s *Store) GetPage(spec models.QuerySpec) (*models.PageResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPageLocked(spec)
}

func (s *Store) getPageLocked(spec models.QuerySpec) (*models.PageResult, bool) {
	if s.page == nil || s.spec == nil || !s.spec.Equal(spec) {
		pageCacheLookups.WithLabelValues(string(s.kind), "miss").Inc()
		return nil, false
	}
	pageCacheLookups.WithLabelValues(string(s.kind), "hit").Inc()
	return s.page.Clone(), true
}

// SetPage replaces the cached page and remembers the spec that produced it.
func (s *Store) SetPage(spec models.QuerySpec, page *models.PageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPageLocked(spec, page)
}

func (s *Store) setPageLocked(spec models.QuerySpec, page *models.PageResult) {
	specCopy := spec.WithPage(spec.Page)
	s.spec = &specCopy
	s.page = page.Clone()
	s.loadedAt = time.Now()
	s.lastErr = nil
	for _, r := range s.page.Items {
		s.index.Add(r.ID, r.Clone())
	}
}

// HasLoadedOnce reports whether the first load has happened or is in flight.
func (s *Store) HasLoadedOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded || s.claimed
}

// MarkLoadedOnce records that the first load finished.
func (s *Store) MarkLoadedOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.claimed = false
}

// Invalidate drops the cached page, the record index and the loaded flag.
// Fetches issued before the call are discarded when they arrive.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = nil
	s.page = nil
	s.loaded = false
	s.claimed = false
	s.gen++
	s.touched = nil
	s.index.Purge()
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Kind:     s.kind,
		Page:     s.page.Clone(),
		Loaded:   s.loaded,
		Loading:  s.claimed,
		LoadedAt: s.loadedAt,
		LastErr:  s.lastErr,
	}
	if s.spec != nil {
		c := s.spec.WithPage(s.spec.Page)
		snap.Spec = &c
	}
	return snap
}

// CurrentSpec returns the most recently requested spec, if any.
func (s *Store) CurrentSpec() (models.QuerySpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCurrent {
		return models.QuerySpec{}, false
	}
	return s.current.WithPage(s.current.Page), true
}

// claim takes the first-load slot; false means another load owns it or it
// already happened.
func (s *Store) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded || s.claimed {
		return false
	}
	s.claimed = true
	return true
}

// request makes spec the current one and returns its generation, plus the
// cached page when it can be served without a fetch.
func (s *Store) request(spec models.QuerySpec, bypass bool) (uint64, *models.PageResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = spec.WithPage(spec.Page)
	s.hasCurrent = true
	s.gen++
	s.touched = nil
	s.refreshing = bypass
	if bypass {
		return s.gen, nil, false
	}
	page, ok := s.getPageLocked(spec)
	return s.gen, page, ok
}

// commit stores a fetched page unless a newer request superseded it.
func (s *Store) commit(gen uint64, spec models.QuerySpec, page *models.PageResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	if s.refreshing {
		s.index.Purge()
		s.refreshing = false
	}
	s.setPageLocked(spec, s.overlayLocked(spec, page))
	s.touched = nil
	return true
}

// overlayLocked applies mutations made while page was in flight.
func (s *Store) overlayLocked(spec models.QuerySpec, page *models.PageResult) *models.PageResult {
	if len(s.touched) == 0 || page == nil {
		return page
	}
	out := page.Clone()
	items := out.Items[:0]
	removed := 0
	for _, item := range out.Items {
		rec, ok := s.touched[item.ID]
		switch {
		case !ok:
			items = append(items, item)
		case rec == nil:
			removed++
		default:
			items = append(items, rec.Clone())
		}
	}
	out.Items = items
	if removed > 0 {
		out.Total -= removed
		if out.Total < 0 {
			out.Total = 0
		}
		if spec.PageSize > 0 {
			out.TotalPages = (out.Total + spec.PageSize - 1) / spec.PageSize
			if out.TotalPages >= 1 && out.Page > out.TotalPages {
				out.Page = out.TotalPages
			}
		}
	}
	return out
}

func (s *Store) touch(id string, r *models.Record) {
	if s.touched == nil {
		s.touched = make(map[string]*models.Record)
	}
	s.touched[id] = r
}

// fail records a fetch error; the cached page stays as it was.
func (s *Store) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.lastErr = err
	}
}

// lookup finds a record by id in the index, then on the cached page.
func (s *Store) lookup(id string) (*models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.index.Get(id); ok {
		recordIndexLookups.WithLabelValues(string(s.kind), "hit").Inc()
		return r.Clone(), true
	}
	if r, ok := s.page.Find(id); ok {
		recordIndexLookups.WithLabelValues(string(s.kind), "hit").Inc()
		return r.Clone(), true
	}
	recordIndexLookups.WithLabelValues(string(s.kind), "miss").Inc()
	return nil, false
}

// remember indexes a record without touching the cached page.
func (s *Store) remember(r *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Add(r.ID, r.Clone())
}

// put replaces a record in the index and, if present, on the cached page.
func (s *Store) put(r *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Add(r.ID, r.Clone())
	s.touch(r.ID, r.Clone())
	if s.page == nil {
		return
	}
	for i, item := range s.page.Items {
		if item.ID == r.ID {
			s.page.Items[i] = r.Clone()
			return
		}
	}
}

// drop removes a record from the index and the cached page.
func (s *Store) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Remove(id)
	s.touch(id, nil)
	if s.page == nil {
		return
	}
	kept := s.page.Items[:0]
	removed := false
	for _, item := range s.page.Items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	s.page.Items = kept
	if !removed {
		return
	}
	if s.page.Total > 0 {
		s.page.Total--
	}
	if s.spec != nil && s.spec.PageSize > 0 {
		s.page.TotalPages = (s.page.Total + s.spec.PageSize - 1) / s.spec.PageSize
		if s.page.TotalPages >= 1 && s.page.Page > s.page.TotalPages {
			s.page.Page = s.page.TotalPages
		}
	}
}

// evictPage forgets the cached page but keeps the loaded flag, so the next
// list call refetches without re-triggering the lazy first load.
func (s *Store) evictPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = nil
	s.page = nil
}

// reset returns the store to its session-start state.
func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = nil
	s.page = nil
	s.loaded = false
	s.claimed = false
	s.hasCurrent = false
	s.current = models.QuerySpec{}
	s.lastErr = nil
	s.loadedAt = time.Time{}
	s.gen++
	s.touched = nil
	s.index.Purge()
}
