package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/osanchezp/loyaltynotify/internal/dispatch"
)

const maxBodySize = 256 * 1024 // 256KB

type DispatchHandler struct {
	dispatcher Dispatcher
	reader     Reader
}

func NewDispatchHandler(dispatcher Dispatcher, reader Reader) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, reader: reader}
}

func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RequestedBy = requesterIdentity(r)

	job, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	writeOK(w, http.StatusOK, map[string]interface{}{
		"jobId":  job.ID,
		"counts": job.Summary,
		"dryRun": job.Options.DryRun,
	})
}

func (h *DispatchHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.reader.GetDispatchJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeOK(w, http.StatusOK, map[string]interface{}{"job": job})
}

// requesterIdentity records who triggered the run: the remote address, plus
// the request id chi assigned.
func requesterIdentity(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return r.RemoteAddr + " (" + id + ")"
	}
	return r.RemoteAddr
}
