// ABOUTME: Tests for the REST client against httptest servers
// ABOUTME: Checks routes, headers, auth, and error decoding
package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/devicedrop/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts := Options{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestListSendsQuery(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, ListResponse{
			Items: []*models.Record{{
				ID: "d1", Kind: models.KindDevice, Status: models.StatusPending,
				Payload: models.DevicePayload{Name: "Laptop"},
			}},
			Total:      11,
			TotalPages: 2,
		})
	}, nil)

	res, err := c.List(context.Background(), models.QuerySpec{
		Kind: models.KindDevice, Page: 2, PageSize: 10,
		Filters: map[string]string{"status": "pending"}, Search: "lap",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/devices", got.URL.Path)
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "10", got.URL.Query().Get("page_size"))
	assert.Equal(t, "pending", got.URL.Query().Get("status"))
	assert.Equal(t, "lap", got.URL.Query().Get("search"))
	assert.NotEmpty(t, got.Header.Get(HeaderRequestID))

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Laptop", res.Items[0].Title())
	assert.Equal(t, 11, res.Total)
	assert.Equal(t, 2, res.TotalPages)
}

func TestListRejectsForeignKinds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ListResponse{
			Items: []*models.Record{{ID: "u1", Kind: models.KindUser, Payload: models.UserPayload{Name: "Dana"}}},
			Total: 1,
		})
	}, nil)

	_, err := c.List(context.Background(), models.QuerySpec{Kind: models.KindDevice, Page: 1, PageSize: 10})
	assert.Error(t, err)
}

func TestListRejectsNullItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[null],"total":1,"total_pages":1}`)
	}, nil)

	_, err := c.List(context.Background(), models.QuerySpec{Kind: models.KindDevice, Page: 1, PageSize: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty item at index 0")
}

func TestUpdateStatusPostsChange(t *testing.T) {
	var change models.StatusChange
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/team-members/t1/status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&change))
		writeJSON(w, http.StatusOK, models.Record{
			ID: "t1", Kind: models.KindTeamMember, Status: models.StatusInactive,
			Payload: models.TeamMemberPayload{Name: "Riley"},
		})
	}, nil)

	rec, err := c.UpdateStatus(context.Background(), models.KindTeamMember, "t1", models.StatusChange{
		Action: models.ActionDeactivate,
		Audit:  models.AuditFields{AdminNotes: "on leave"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, rec.Status)
	assert.Equal(t, models.ActionDeactivate, change.Action)
	assert.Equal(t, "on leave", change.Audit.AdminNotes)
}

func TestCreateSendsIdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/requests", r.URL.Path)
		assert.Equal(t, "tok-1", r.Header.Get(HeaderIdempotencyKey))
		var p models.RequestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		writeJSON(w, http.StatusCreated, models.Record{ID: "r9", Kind: models.KindRequest, Status: models.StatusPending, Payload: p})
	}, nil)

	rec, err := c.Create(context.Background(), models.KindRequest, "tok-1", models.RequestPayload{Requester: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "r9", rec.ID)
	assert.Equal(t, "Ana", rec.Payload.(models.RequestPayload).Requester)
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/users/u%201", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	assert.NoError(t, c.Delete(context.Background(), models.KindUser, "u 1"))
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, ErrorBody{Error: ErrorDetail{Code: "invalid_transition", Message: "cannot approve"}})
	}, nil)

	_, err := c.UpdateStatus(context.Background(), models.KindDevice, "d1", models.StatusChange{Action: models.ActionApprove})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
	assert.Contains(t, err.Error(), "cannot approve")
}

func TestPlainErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such record", http.StatusNotFound)
	}, nil)

	_, err := c.Get(context.Background(), models.KindDevice, "d1")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no such record")
}

func TestStaticTokenIsSent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, func(o *Options) { o.Token = "secret" })

	assert.NoError(t, c.Delete(context.Background(), models.KindDevice, "d1"))
}

func TestClientCredentialsFlow(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "cc-token", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/api/v1/devices/d1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cc-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:      srv.URL,
		ClientID:     "console",
		ClientSecret: "shh",
		TokenURL:     srv.URL + "/token",
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Delete(ctx, models.KindDevice, "d1"))
	require.NoError(t, c.Delete(ctx, models.KindDevice, "d1"))
	assert.Equal(t, int32(1), tokenCalls.Load(), "token is cached between requests")
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, func(o *Options) {
		o.RequestsPerSecond = 0.001
		o.Burst = 1
	})

	require.NoError(t, c.Delete(context.Background(), models.KindDevice, "d1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Delete(ctx, models.KindDevice, "d1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limit"))
}
