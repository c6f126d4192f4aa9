// ABOUTME: Tests for the workflow facade
// ABOUTME: Covers caching, stale-response discard, single-flight mutations, and outcome codes
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/devicedrop/models"
)

func seededFacade(t *testing.T) (*Facade, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	api.add(models.KindDevice, "d1", models.StatusPending, models.DevicePayload{Name: "iPad Air", Type: "tablet"})
	api.add(models.KindDevice, "d2", models.StatusPending, models.DevicePayload{Name: "Dell XPS", Type: "laptop"})
	api.add(models.KindDevice, "d3", models.StatusApproved, models.DevicePayload{Name: "Pixel 6", Type: "phone"})
	api.add(models.KindRequest, "r1", models.StatusPending, models.RequestPayload{Requester: "Lincoln High", DeviceType: "laptop"})
	api.add(models.KindUser, "u1", models.StatusActive, models.UserPayload{Name: "Ada", Role: "donor"})
	return New(api), api
}

func pendingFilter() map[string]string { return map[string]string{"status": "pending"} }

// blockFirstMutation parks the first mutation until release is closed; later
// mutations pass straight through.
func blockFirstMutation(api *fakeAPI) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var blocked atomic.Bool
	api.mutateHook = func() {
		if blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}
	return entered, release
}

func TestListPageServesIdenticalCallFromCache(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()

	first, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)

	second, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.listCount())

	_, err = f.ListPage(ctx, models.KindDevice, 1, map[string]string{"status": "approved"}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, api.listCount(), "changing a filter forces a fetch")
}

func TestListPageSentinelFilterSharesCache(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()

	_, err := f.ListPage(ctx, models.KindDevice, 0, map[string]string{"status": "all"}, "")
	require.NoError(t, err)
	_, err = f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1, api.listCount())
}

func TestListPageFailureKeepsStaleCache(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()

	_, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
	require.NoError(t, err)

	api.listErr = errNetwork
	_, err = f.ListPage(ctx, models.KindDevice, 2, pendingFilter(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, errNetwork)
	assert.Contains(t, err.Error(), "list devices")

	snap := f.Snapshot(models.KindDevice)
	require.NotNil(t, snap.Page)
	assert.Len(t, snap.Page.Items, 2, "stale page stays available")
	assert.ErrorIs(t, snap.LastErr, errNetwork)
}

func TestListPageDiscardsStaleResponse(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	api.listHook = func(spec models.QuerySpec) {
		if spec.Filters["status"] == "pending" {
			close(entered)
			<-release
		}
	}

	slow := make(chan error, 1)
	go func() {
		_, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
		slow <- err
	}()
	<-entered

	approved, err := f.ListPage(ctx, models.KindDevice, 1, map[string]string{"status": "approved"}, "")
	require.NoError(t, err)
	require.Len(t, approved.Items, 1)

	close(release)
	assert.ErrorIs(t, <-slow, ErrSuperseded)

	snap := f.Snapshot(models.KindDevice)
	require.NotNil(t, snap.Spec)
	assert.Equal(t, "approved", snap.Spec.Filters["status"])
	assert.Equal(t, "d3", snap.Page.Items[0].ID)
}

func TestResetDiscardsInFlightResponse(t *testing.T) {
	f, api := seededFacade(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	api.listHook = func(models.QuerySpec) {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.ListPage(context.Background(), models.KindUser, 1, nil, "")
		done <- err
	}()
	<-entered

	f.Reset()
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	snap := f.Snapshot(models.KindUser)
	assert.Nil(t, snap.Page)
	assert.False(t, snap.Loaded)
}

func TestTransitionEndToEnd(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()

	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	rec, err := f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{AdminNotes: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, rec.Status)

	snap := f.Snapshot(models.KindDevice)
	cached, ok := snap.Page.Find("d1")
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, cached.Status, "page updated in place")
	assert.False(t, f.Busy(models.KindDevice, "d1"), "ticket released")
	assert.Equal(t, 1, api.listCount(), "no refetch needed")

	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, api.statusCount(), "rejected before any network call")
}

func TestTransitionMissingReasonMakesNoCall(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionReject, models.AuditFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "rejection_reason", e.Field)
	assert.Equal(t, 0, api.statusCount())
	assert.False(t, f.Busy(models.KindDevice, "d1"))

	rec, err := f.Transition(ctx, models.KindDevice, "d1", models.ActionReject, models.AuditFields{RejectionReason: "broken screen"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rec.Status)
}

func TestTransitionSingleFlight(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	entered, release := blockFirstMutation(api)

	first := make(chan error, 1)
	go func() {
		_, err := f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
		first <- err
	}()
	<-entered

	assert.True(t, f.Busy(models.KindDevice, "d1"))
	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.EqualError(t, err, "approve device d1: already processing")

	_, err = f.EditFields(ctx, models.KindDevice, "d1", map[string]any{"name": "iPad"})
	assert.ErrorIs(t, err, ErrBusy, "edits share the same per-resource gate")

	// Another device is not blocked.
	_, err = f.Transition(ctx, models.KindDevice, "d2", models.ActionApprove, models.AuditFields{})
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-first)

	rec, err := f.Transition(ctx, models.KindDevice, "d1", models.ActionReject, models.AuditFields{RejectionReason: "recalled"})
	require.NoError(t, err, "third call is admitted once the first resolved")
	assert.Equal(t, models.StatusRejected, rec.Status)
}

func TestTransitionNetworkFailureLeavesCacheUntouched(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	api.statusErr = errNetwork
	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationFailed)
	assert.ErrorIs(t, err, errNetwork)
	assert.Contains(t, err.Error(), "approve device d1")

	rec, ok := f.Record(models.KindDevice, "d1")
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.False(t, f.Busy(models.KindDevice, "d1"))

	api.statusErr = nil
	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
	assert.NoError(t, err, "retry is a fresh call")
}

func TestTransitionLooksUpUncachedRecord(t *testing.T) {
	f, api := seededFacade(t)

	rec, err := f.Transition(context.Background(), models.KindRequest, "r1", models.ActionApprove, models.AuditFields{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, rec.Status)
	assert.Equal(t, 1, api.getCalls)

	_, err = f.Transition(context.Background(), models.KindRequest, "missing", models.ActionApprove, models.AuditFields{})
	assert.ErrorIs(t, err, ErrMutationFailed)
}

func TestAccountTransitionsNeedNoAudit(t *testing.T) {
	f, _ := seededFacade(t)
	ctx := context.Background()

	rec, err := f.Transition(ctx, models.KindUser, "u1", models.ActionSuspend, models.AuditFields{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, rec.Status)

	assert.Equal(t, []models.Action{models.ActionActivate}, f.AllowedActions(models.KindUser, "u1"))
}

func TestEditFields(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	rec, err := f.EditFields(ctx, models.KindDevice, "d2", map[string]any{"condition": "good"})
	require.NoError(t, err)
	assert.Equal(t, "good", rec.Payload.(models.DevicePayload).Condition)

	cached, _ := f.Record(models.KindDevice, "d2")
	assert.Equal(t, "good", cached.Payload.(models.DevicePayload).Condition)

	api.updateErr = errors.New("422 condition must be one of new, good, fair")
	_, err = f.EditFields(ctx, models.KindDevice, "d2", map[string]any{"condition": "meh"})
	assert.ErrorIs(t, err, ErrMutationFailed)
	cached, _ = f.Record(models.KindDevice, "d2")
	assert.Equal(t, "good", cached.Payload.(models.DevicePayload).Condition)
}

func TestCreateRefusesDoubleSubmit(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindTeamMember, 1, nil, "")
	require.NoError(t, err)

	entered, release := blockFirstMutation(api)

	token := NewSubmissionToken()
	payload := models.TeamMemberPayload{Name: "Grace", JobTitle: "Volunteer lead"}

	done := make(chan error, 1)
	go func() {
		_, err := f.Create(ctx, models.KindTeamMember, token, payload)
		done <- err
	}()
	<-entered

	_, err = f.Create(ctx, models.KindTeamMember, token, payload)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.createCalls)

	// The cached page was evicted, so the next list sees the new member.
	page, err := f.ListPage(ctx, models.KindTeamMember, 1, nil, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestCreateRejectsForeignPayload(t *testing.T) {
	f, api := seededFacade(t)
	_, err := f.Create(context.Background(), models.KindUser, "", models.DevicePayload{Name: "x"})
	assert.ErrorIs(t, err, ErrMutationFailed)
	assert.Equal(t, 0, api.createCalls)
}

func TestRemoveDropsRecordFromPage(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	require.NoError(t, f.Remove(ctx, models.KindDevice, "d2"))

	snap := f.Snapshot(models.KindDevice)
	_, found := snap.Page.Find("d2")
	assert.False(t, found)
	assert.Equal(t, 2, snap.Page.Total)

	api.deleteErr = errNetwork
	err = f.Remove(ctx, models.KindDevice, "d1")
	assert.ErrorIs(t, err, ErrMutationFailed)
	_, found = f.Snapshot(models.KindDevice).Page.Find("d1")
	assert.True(t, found)
}

func TestUnknownKind(t *testing.T) {
	f, _ := seededFacade(t)
	_, err := f.ListPage(context.Background(), models.Kind("donor"), 1, nil, "")
	assert.Error(t, err)
}

func TestTicketsReleasedAfterConcurrentMutations(t *testing.T) {
	f, _ := seededFacade(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Transition(ctx, models.KindUser, "u1", models.ActionDeactivate, models.AuditFields{})
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return !f.Busy(models.KindUser, "u1") }, time.Second, 10*time.Millisecond)
}

// lateListAPI reads the list from the fake immediately but holds the answer
// until deliver is closed.
type lateListAPI struct {
	*fakeAPI
	answered chan struct{}
	deliver  chan struct{}
}

func newLateListAPI(api *fakeAPI) *lateListAPI {
	return &lateListAPI{fakeAPI: api, answered: make(chan struct{}), deliver: make(chan struct{})}
}

func (a *lateListAPI) List(ctx context.Context, spec models.QuerySpec) (models.ListResult, error) {
	res, err := a.fakeAPI.List(ctx, spec)
	close(a.answered)
	<-a.deliver
	return res, err
}

func TestLateListKeepsNewerTransition(t *testing.T) {
	_, inner := seededFacade(t)
	api := newLateListAPI(inner)
	f := New(api)
	ctx := context.Background()

	listed := make(chan error, 1)
	go func() {
		_, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
		listed <- err
	}()
	<-api.answered

	rec, err := f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{AdminNotes: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, rec.Status)

	close(api.deliver)
	require.NoError(t, <-listed)

	cached, ok := f.Record(models.KindDevice, "d1")
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, cached.Status)
	onPage, ok := f.Snapshot(models.KindDevice).Page.Find("d1")
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, onPage.Status)

	_, err = f.Transition(ctx, models.KindDevice, "d1", models.ActionApprove, models.AuditFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, inner.statusCount(), "repeat approve is refused locally")
}

func TestLateListKeepsRemoval(t *testing.T) {
	_, inner := seededFacade(t)
	api := newLateListAPI(inner)
	f := New(api)
	ctx := context.Background()

	listed := make(chan error, 1)
	go func() {
		_, err := f.ListPage(ctx, models.KindDevice, 1, pendingFilter(), "")
		listed <- err
	}()
	<-api.answered

	require.NoError(t, f.Remove(ctx, models.KindDevice, "d2"))
	close(api.deliver)
	require.NoError(t, <-listed)

	page := f.Snapshot(models.KindDevice).Page
	require.NotNil(t, page)
	_, found := page.Find("d2")
	assert.False(t, found)
	assert.Equal(t, 1, page.Total)
}

func TestEditFieldsSingleFlight(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	entered, release := blockFirstMutation(api)

	first := make(chan error, 1)
	go func() {
		_, err := f.EditFields(ctx, models.KindDevice, "d1", map[string]any{"condition": "good"})
		first <- err
	}()
	<-entered

	_, err = f.EditFields(ctx, models.KindDevice, "d1", map[string]any{"condition": "fair"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.EqualError(t, err, "edit device d1: already processing")

	err = f.Remove(ctx, models.KindDevice, "d1")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-first)
	assert.False(t, f.Busy(models.KindDevice, "d1"))

	rec, err := f.EditFields(ctx, models.KindDevice, "d1", map[string]any{"condition": "fair"})
	require.NoError(t, err, "third call is admitted once the first resolved")
	assert.Equal(t, "fair", rec.Payload.(models.DevicePayload).Condition)
}

func TestRemoveSingleFlight(t *testing.T) {
	f, api := seededFacade(t)
	ctx := context.Background()
	_, err := f.ListPage(ctx, models.KindDevice, 1, nil, "")
	require.NoError(t, err)

	entered, release := blockFirstMutation(api)
	api.deleteErr = errNetwork

	first := make(chan error, 1)
	go func() {
		first <- f.Remove(ctx, models.KindDevice, "d2")
	}()
	<-entered

	err = f.Remove(ctx, models.KindDevice, "d2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.EqualError(t, err, "remove device d2: already processing")

	_, err = f.EditFields(ctx, models.KindDevice, "d2", map[string]any{"condition": "good"})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.ErrorIs(t, <-first, ErrMutationFailed)
	assert.False(t, f.Busy(models.KindDevice, "d2"), "failure releases the ticket")

	api.mu.Lock()
	api.deleteErr = nil
	api.mu.Unlock()
	require.NoError(t, f.Remove(ctx, models.KindDevice, "d2"))
	_, found := f.Snapshot(models.KindDevice).Page.Find("d2")
	assert.False(t, found)
}
