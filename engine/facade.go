// ABOUTME: Public workflow surface used by every admin screen
// ABOUTME: Composes query building, stores, the mutation gate, and the state machine
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

// Facade is the one entry point screens, the CLI, and MCP tools call. It
// owns one Store per kind for the lifetime of a session.
type Facade struct {
	api      API
	gate     *Gate
	logger   *log.Logger
	pageSize int
	stores   map[models.Kind]*Store
}

// Option configures a Facade.
type Option func(*facadeOptions)

type facadeOptions struct {
	logger    *log.Logger
	pageSize  int
	indexSize int
	indexTTL  time.Duration
	gate      *Gate
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *facadeOptions) { o.logger = l }
}

// WithPageSize sets the page size used by ListPage.
func WithPageSize(n int) Option {
	return func(o *facadeOptions) { o.pageSize = n }
}

// WithRecordIndex bounds the per-kind record index.
func WithRecordIndex(size int, ttl time.Duration) Option {
	return func(o *facadeOptions) {
		o.indexSize = size
		o.indexTTL = ttl
	}
}

// WithGate shares a gate between facades.
func WithGate(g *Gate) Option {
	return func(o *facadeOptions) { o.gate = g }
}

// New starts a session against api with empty stores.
func New(api API, opts ...Option) *Facade {
	o := facadeOptions{pageSize: models.DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.gate == nil {
		o.gate = NewGate()
	}
	if o.pageSize <= 0 {
		o.pageSize = models.DefaultPageSize
	}

	f := &Facade{
		api:      api,
		gate:     o.gate,
		logger:   o.logger,
		pageSize: o.pageSize,
		stores:   make(map[models.Kind]*Store, len(models.AllKinds)),
	}
	for _, kind := range models.AllKinds {
		f.stores[kind] = newStore(kind, o.indexSize, o.indexTTL)
	}
	return f
}

// PageSize is the page size applied to ListPage.
func (f *Facade) PageSize() int { return f.pageSize }

// NewSubmissionToken mints the per-form token passed to Create.
func NewSubmissionToken() string {
	return ulid.Make().String()
}

func (f *Facade) store(kind models.Kind) (*Store, error) {
	st, ok := f.stores[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return st, nil
}

// ListPage returns one page of kind, from cache when the exact same page was
// the last one fetched.
func (f *Facade) ListPage(ctx context.Context, kind models.Kind, page int, filters map[string]string, search string) (*models.PageResult, error) {
	return f.List(ctx, BuildQuery(kind, page, f.pageSize, filters, search))
}

// List is ListPage for an already built spec.
func (f *Facade) List(ctx context.Context, spec models.QuerySpec) (*models.PageResult, error) {
	return f.list(ctx, spec, false)
}

func (f *Facade) list(ctx context.Context, spec models.QuerySpec, bypass bool) (*models.PageResult, error) {
	st, err := f.store(spec.Kind)
	if err != nil {
		return nil, err
	}

	gen, cached, hit := st.request(spec, bypass)
	if hit {
		f.logger.Debug("page cache hit", "kind", spec.Kind, "page", spec.Page)
		return cached, nil
	}

	res, err := f.api.List(ctx, spec)
	if err != nil {
		st.fail(gen, err)
		fetchesTotal.WithLabelValues(string(spec.Kind), "failed").Inc()
		f.logger.Warn("list failed", "kind", spec.Kind, "page", spec.Page, "err", err)
		return nil, newError(CodeFetchFailed, spec.Kind, "", "list", err)
	}

	page := models.NewPageResult(spec, res)
	if !st.commit(gen, spec, page) {
		fetchesTotal.WithLabelValues(string(spec.Kind), "superseded").Inc()
		f.logger.Debug("discarding superseded page", "kind", spec.Kind, "spec", spec.Key())
		return nil, ErrSuperseded
	}

	fetchesTotal.WithLabelValues(string(spec.Kind), "ok").Inc()
	f.logger.Debug("page fetched", "kind", spec.Kind, "page", page.Page, "total", page.Total)
	return page, nil
}

// Transition moves a record through its moderation workflow. Illegal or
// incomplete requests are refused before any network call; a failed remote
// call leaves the cached record untouched.
func (f *Facade) Transition(ctx context.Context, kind models.Kind, id string, action models.Action, audit models.AuditFields) (*models.Record, error) {
	st, err := f.store(kind)
	if err != nil {
		return nil, err
	}

	var updated *models.Record
	err = f.guard(kind, id, string(action), func() error {
		current, err := f.lookup(ctx, st, id)
		if err != nil {
			return newError(CodeMutationFailed, kind, id, string(action), err)
		}

		decision, err := moderation.Transition(kind, current.Status, action, audit)
		if err != nil {
			return rejectionError(kind, id, action, err)
		}

		rec, err := f.api.UpdateStatus(ctx, kind, id, models.StatusChange{Action: action, Audit: decision.Audit})
		if err != nil {
			return newError(CodeMutationFailed, kind, id, string(action), err)
		}
		if rec.Status != decision.Next {
			f.logger.Warn("remote status differs from workflow", "kind", kind, "id", id, "want", decision.Next, "got", rec.Status)
		}

		st.put(rec)
		updated = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("status changed", "kind", kind, "id", id, "action", action, "status", updated.Status)
	return updated, nil
}

// EditFields sends patch to the remote side unchanged; field validation is
// the remote side's job.
func (f *Facade) EditFields(ctx context.Context, kind models.Kind, id string, patch map[string]any) (*models.Record, error) {
	st, err := f.store(kind)
	if err != nil {
		return nil, err
	}

	var updated *models.Record
	err = f.guard(kind, id, "edit", func() error {
		rec, err := f.api.Update(ctx, kind, id, patch)
		if err != nil {
			return newError(CodeMutationFailed, kind, id, "edit", err)
		}
		st.put(rec)
		updated = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Create submits a new record. token identifies the submission: a second
// Create with the same token while the first is in flight is refused.
func (f *Facade) Create(ctx context.Context, kind models.Kind, token string, payload models.Payload) (*models.Record, error) {
	st, err := f.store(kind)
	if err != nil {
		return nil, err
	}
	if token == "" {
		token = NewSubmissionToken()
	}
	if payload == nil || payload.Kind() != kind {
		return nil, newError(CodeMutationFailed, kind, "", "create", fmt.Errorf("payload does not describe a %s", kind.Noun()))
	}

	var created *models.Record
	err = f.guardKey(kind, "submit:"+token, "", "create", func() error {
		rec, err := f.api.Create(ctx, kind, token, payload)
		if err != nil {
			return newError(CodeMutationFailed, kind, "", "create", err)
		}
		st.remember(rec)
		st.evictPage()
		created = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("record created", "kind", kind, "id", created.ID)
	return created, nil
}

// Remove deletes a record and drops it from the cached page.
func (f *Facade) Remove(ctx context.Context, kind models.Kind, id string) error {
	st, err := f.store(kind)
	if err != nil {
		return err
	}

	err = f.guard(kind, id, "remove", func() error {
		if err := f.api.Delete(ctx, kind, id); err != nil {
			return newError(CodeMutationFailed, kind, id, "remove", err)
		}
		st.drop(id)
		return nil
	})
	if err != nil {
		return err
	}

	f.logger.Info("record removed", "kind", kind, "id", id)
	return nil
}

// Get returns a record from cache, falling back to the remote side.
func (f *Facade) Get(ctx context.Context, kind models.Kind, id string) (*models.Record, error) {
	st, err := f.store(kind)
	if err != nil {
		return nil, err
	}
	rec, err := f.lookup(ctx, st, id)
	if err != nil {
		return nil, newError(CodeFetchFailed, kind, id, "get", err)
	}
	return rec, nil
}

// Record returns a cached record without any network call.
func (f *Facade) Record(kind models.Kind, id string) (*models.Record, bool) {
	st, err := f.store(kind)
	if err != nil {
		return nil, false
	}
	return st.lookup(id)
}

// Busy reports whether a mutation on (kind, id) is in flight.
func (f *Facade) Busy(kind models.Kind, id string) bool {
	return f.gate.Busy(kind, id)
}

// AllowedActions lists the actions the cached record's status permits.
func (f *Facade) AllowedActions(kind models.Kind, id string) []models.Action {
	rec, ok := f.Record(kind, id)
	if !ok {
		return nil
	}
	return moderation.Allowed(kind, rec.Status)
}

// Snapshot returns the cached state of kind.
func (f *Facade) Snapshot(kind models.Kind) Snapshot {
	st, err := f.store(kind)
	if err != nil {
		return Snapshot{Kind: kind}
	}
	return st.Snapshot()
}

// Invalidate forces the next list of kind to hit the remote side.
func (f *Facade) Invalidate(kind models.Kind) {
	if st, err := f.store(kind); err == nil {
		st.Invalidate()
	}
}

// Reset clears every store, as on logout. Responses still in flight are
// discarded when they arrive.
func (f *Facade) Reset() {
	for _, st := range f.stores {
		st.reset()
	}
	f.logger.Info("session reset")
}

func (f *Facade) lookup(ctx context.Context, st *Store, id string) (*models.Record, error) {
	if rec, ok := st.lookup(id); ok {
		return rec, nil
	}
	rec, err := f.api.Get(ctx, st.Kind(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load current status: %w", err)
	}
	st.remember(rec)
	return rec.Clone(), nil
}

func (f *Facade) guard(kind models.Kind, id, action string, fn func() error) error {
	return f.guardKey(kind, id, id, action, fn)
}

// guardKey runs fn under the gate ticket for key and reports the outcome.
// id is the resource id used in error messages.
func (f *Facade) guardKey(kind models.Kind, key, id, action string, fn func() error) error {
	err := f.gate.Do(kind, key, func(*Ticket) error { return fn() })
	if err == ErrBusy {
		err = newError(CodeBusy, kind, id, action, nil)
	}
	mutationsTotal.WithLabelValues(string(kind), action, outcomeLabel(err)).Inc()
	if err != nil && CodeOf(err) == CodeMutationFailed {
		f.logger.Error("mutation failed", "kind", kind, "id", id, "action", action, "err", err)
	}
	return err
}

func rejectionError(kind models.Kind, id string, action models.Action, err error) error {
	var rej *moderation.Rejection
	if !errors.As(err, &rej) {
		return newError(CodeMutationFailed, kind, id, string(action), err)
	}
	code := CodeInvalidTransition
	if rej.Reason == moderation.ReasonMissingRequiredField {
		code = CodeMissingRequiredField
	}
	e := newError(code, kind, id, string(action), rej)
	e.Field = rej.Field
	return e
}
