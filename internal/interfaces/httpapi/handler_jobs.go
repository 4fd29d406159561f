package httpapi

import (
	"net/http"
	"strings"
)

// RunConvocationDispatchJob is the queue callback for deferred batches. The
// scheduler poll loop covers batches whose callback never arrives.
func (h *Handler) RunConvocationDispatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunConvocationDispatchJob")
	defer span.End()

	batchID := strings.TrimSpace(r.PathValue("batchID"))
	result, err := h.dispatchService.DispatchBatch(ctx, batchID)
	if err != nil {
		h.logger.WarnContext(ctx, "convocation dispatch job failed", "batch_id", batchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
