package http

import (
	"log"
	"net/http"
)

// ReconcileHandler triggers out-of-band reconciliation ticks.
type ReconcileHandler struct {
	trigger func() error
}

// NewReconcileHandler creates a handler; trigger is typically Scheduler.TriggerNow.
func NewReconcileHandler(trigger func() error) *ReconcileHandler {
	return &ReconcileHandler{trigger: trigger}
}

// HandleTrigger queues a tick and returns 202; 503 when it cannot be queued.
func (h *ReconcileHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "reconciliation is disabled"})
		return
	}
	if err := h.trigger(); err != nil {
		log.Printf("Reconcile trigger rejected: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "reconciliation could not be queued"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
