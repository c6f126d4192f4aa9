// ABOUTME: Tests for the dev REST server
// ABOUTME: Exercises routes directly and through the REST client and workflow facade
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/devicedrop/apiclient"
	"github.com/harperreed/devicedrop/db"
	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

func newTestBackend(t *testing.T) *db.Backend {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(database))
	t.Cleanup(func() { _ = database.Close() })
	return db.NewBackend(database)
}

func newTestServer(t *testing.T) (*httptest.Server, *db.Backend) {
	t.Helper()
	backend := newTestBackend(t)
	srv := httptest.NewServer(NewServer(backend, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, backend
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(apiclient.HeaderRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownCollectionIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/donors")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusErrorsMapToHTTP(t *testing.T) {
	srv, backend := newTestServer(t)
	ctx := context.Background()
	rec, err := backend.Create(ctx, models.KindDevice, "", models.DevicePayload{Name: "Laptop"})
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want int
		code string
	}{
		{"missing reason", `{"action":"reject"}`, http.StatusUnprocessableEntity, "missing_required_field"},
		{"illegal", `{"action":"reset","audit":{"reset_reason":"x"}}`, http.StatusConflict, "invalid_transition"},
		{"unknown action", `{"action":"archive"}`, http.StatusBadRequest, "bad_request"},
		{"bad json", `{`, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/devices/"+rec.ID+"/status", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			var body apiclient.ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRoundTripThroughClientAndFacade(t *testing.T) {
	srv, backend := newTestServer(t)
	ctx := context.Background()
	_, err := backend.Seed(ctx)
	require.NoError(t, err)

	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	f := engine.New(client, engine.WithPageSize(2))

	page, err := f.ListPage(ctx, models.KindDevice, 1, map[string]string{"status": "pending"}, "")
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)

	target := page.Items[0]
	_, err = f.Transition(ctx, models.KindDevice, target.ID, models.ActionReject, models.AuditFields{})
	assert.ErrorIs(t, err, engine.ErrMissingRequiredField)

	updated, err := f.Transition(ctx, models.KindDevice, target.ID, models.ActionReject, models.AuditFields{RejectionReason: "cracked"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)

	trail, err := backend.AuditTrail(ctx, models.KindDevice, target.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "cracked", trail[0].RejectionReason)

	edited, err := f.EditFields(ctx, models.KindDevice, target.ID, map[string]any{"location": "Skokie"})
	require.NoError(t, err)
	assert.Equal(t, "Skokie", edited.Payload.(models.DevicePayload).Location)

	_, err = f.EditFields(ctx, models.KindDevice, target.ID, map[string]any{"status": "approved"})
	assert.ErrorIs(t, err, engine.ErrMutationFailed)

	token := engine.NewSubmissionToken()
	created, err := f.Create(ctx, models.KindTeamMember, token, models.TeamMemberPayload{Name: "Alex"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, created.Status)
	again, err := f.Create(ctx, models.KindTeamMember, token, models.TeamMemberPayload{Name: "Alex"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	require.NoError(t, f.Remove(ctx, models.KindTeamMember, created.ID))
	_, err = backend.Get(ctx, models.KindTeamMember, created.ID)
	assert.ErrorIs(t, err, db.ErrRecordNotFound)

	err = f.Remove(ctx, models.KindTeamMember, created.ID)
	require.Error(t, err)
	assert.True(t, apiclient.IsNotFound(err))
}

func TestRequestSearchFilterIsFolded(t *testing.T) {
	srv, backend := newTestServer(t)
	ctx := context.Background()
	_, err := backend.Seed(ctx)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/requests?search=library")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiclient.ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Total)
	assert.Len(t, body.Items, 1)
}
