package handlers

import (
	"errors"
	"net/http"

	"blockwatch/internal/blocker"
	"blockwatch/internal/middlewares"
)

// POSTSweep runs one expiry sweep immediately.
func POSTSweep(ctx *middlewares.AppContext) {
	result, err := ctx.Blocker.Sweep(ctx)
	if errors.Is(err, blocker.ErrSweepInProgress) {
		ctx.SetJSONError(http.StatusConflict, err.Error())
		return
	}

	resp := SweepResponse{SweepResult: result}
	if err != nil {
		ctx.Logger.Error("manual sweep finished with errors", "failed", result.Failed, "error", err)
		resp.Error = err.Error()
		ctx.WriteJSON(statusForError(err), resp)
		return
	}

	ctx.WriteJSON(http.StatusOK, resp)
}
