// ABOUTME: In-memory API double for engine tests
// ABOUTME: Counts calls and lets tests block or fail individual operations
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

var errNetwork = errors.New("connection reset by peer")

type fakeAPI struct {
	mu      sync.Mutex
	records map[models.Kind]map[string]*models.Record

	listCalls   []models.QuerySpec
	statusCalls int
	updateCalls int
	createCalls int
	deleteCalls int
	getCalls    int

	listErr   error
	statusErr error
	updateErr error
	createErr error
	deleteErr error

	// listHook runs before a list answers; tests use it to block.
	listHook func(spec models.QuerySpec)
	// mutateHook runs before any mutation answers.
	mutateHook func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{records: make(map[models.Kind]map[string]*models.Record)}
}

func (f *fakeAPI) add(kind models.Kind, id string, status models.Status, payload models.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[kind] == nil {
		f.records[kind] = make(map[string]*models.Record)
	}
	now := time.Now().UTC()
	f.records[kind][id] = &models.Record{ID: id, Kind: kind, Status: status, CreatedAt: now, UpdatedAt: now, Payload: payload}
}

func (f *fakeAPI) status(kind models.Kind, id string) models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[kind][id].Status
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeAPI) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeAPI) List(_ context.Context, spec models.QuerySpec) (models.ListResult, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, spec)
	hook := f.listHook
	err := f.listErr
	f.mu.Unlock()

	if hook != nil {
		hook(spec)
	}
	if err != nil {
		return models.ListResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.Record
	for _, r := range f.records[spec.Kind] {
		if s, ok := spec.Filters["status"]; ok && string(r.Status) != s {
			continue
		}
		matched = append(matched, r.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := (spec.Page - 1) * spec.PageSize
	end := start + spec.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	pages := (len(matched) + spec.PageSize - 1) / spec.PageSize
	return models.ListResult{Items: matched[start:end], Total: len(matched), TotalPages: pages}, nil
}

func (f *fakeAPI) Get(_ context.Context, kind models.Kind, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	r, ok := f.records[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s not found", kind, id)
	}
	return r.Clone(), nil
}

func (f *fakeAPI) beforeMutation() {
	f.mu.Lock()
	hook := f.mutateHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeAPI) UpdateStatus(_ context.Context, kind models.Kind, id string, change models.StatusChange) (*models.Record, error) {
	f.mu.Lock()
	f.statusCalls++
	f.mu.Unlock()
	f.beforeMutation()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	r, ok := f.records[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s not found", kind, id)
	}
	d, err := moderation.Transition(kind, r.Status, change.Action, change.Audit)
	if err != nil {
		return nil, err
	}
	r.Status = d.Next
	r.UpdatedAt = time.Now().UTC()
	return r.Clone(), nil
}

func (f *fakeAPI) Update(_ context.Context, kind models.Kind, id string, patch map[string]any) (*models.Record, error) {
	f.mu.Lock()
	f.updateCalls++
	f.mu.Unlock()
	f.beforeMutation()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	r, ok := f.records[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s not found", kind, id)
	}
	fields, err := models.PayloadToMap(r.Payload)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	p, err := models.PayloadFromMap(kind, fields)
	if err != nil {
		return nil, err
	}
	r.Payload = p
	return r.Clone(), nil
}

func (f *fakeAPI) Create(_ context.Context, kind models.Kind, token string, payload models.Payload) (*models.Record, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	f.beforeMutation()

	if f.createErr != nil {
		return nil, f.createErr
	}
	id := "new-" + token
	f.add(kind, id, moderation.InitialStatus(kind), payload)
	return f.Get(context.Background(), kind, id)
}

func (f *fakeAPI) Delete(_ context.Context, kind models.Kind, id string) error {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	f.beforeMutation()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records[kind], id)
	return nil
}
