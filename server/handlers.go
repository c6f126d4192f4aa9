// ABOUTME: HTTP handlers for the resource collections
// ABOUTME: Translates backend and workflow errors into the JSON error envelope
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/devicedrop/apiclient"
	"github.com/harperreed/devicedrop/db"
	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

const maxBodyBytes = 1 << 20

var reservedParams = map[string]bool{"page": true, "page_size": true, "search": true}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiclient.ErrorBody{Error: apiclient.ErrorDetail{Code: code, Message: message}})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rej *moderation.Rejection
	switch {
	case errors.As(err, &rej):
		status := http.StatusConflict
		if rej.Reason == moderation.ReasonMissingRequiredField {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, string(rej.Reason), rej.Error())
	case errors.Is(err, db.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, db.ErrInvalidPatch):
		writeError(w, http.StatusBadRequest, "invalid_patch", err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func kindParam(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return "", false
	}
	return kind, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	filters := map[string]string{}
	for key := range q {
		if !reservedParams[key] {
			filters[key] = q.Get(key)
		}
	}
	spec := engine.BuildQuery(kind, page, pageSize, filters, q.Get("search"))

	res, err := s.backend.List(r.Context(), spec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := res.Items
	if items == nil {
		items = []*models.Record{}
	}
	writeJSON(w, http.StatusOK, apiclient.ListResponse{Items: items, Total: res.Total, TotalPages: res.TotalPages})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	rec, err := s.backend.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var change models.StatusChange
	if !decodeBody(w, r, &change) {
		return
	}
	action, err := models.ParseAction(string(change.Action))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	change.Action = action

	rec, err := s.backend.UpdateStatus(r.Context(), kind, chi.URLParam(r, "id"), change)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	rec, err := s.backend.Update(r.Context(), kind, chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}
	payload, err := models.PayloadFromMap(kind, fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patch", err.Error())
		return
	}
	rec, err := s.backend.Create(r.Context(), kind, r.Header.Get(apiclient.HeaderIdempotencyKey), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	if err := s.backend.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	entries, err := s.backend.AuditTrail(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []db.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
