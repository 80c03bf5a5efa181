package api

import "net/http"

type QueueHandler struct {
	poller QueuePoller
}

func NewQueueHandler(poller QueuePoller) *QueueHandler {
	return &QueueHandler{poller: poller}
}

// Poll runs one queue pass. The scheduler fires this blind; health lives in
// job-state inspection, so the response only reports the processed count.
func (h *QueueHandler) Poll(w http.ResponseWriter, r *http.Request) {
	processed, err := h.poller.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue poll failed")
		return
	}
	writeOK(w, http.StatusOK, map[string]interface{}{"processed": processed})
}
