package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"blocklab-backend/internal/models"
	"blocklab-backend/internal/services"
)

type ResultsHandler struct {
	archive *services.ArchiveService
}

func NewResultsHandler(archive *services.ArchiveService) *ResultsHandler {
	return &ResultsHandler{archive: archive}
}

// Download streams the reconstructed project archive for a selection. Query
// parameters: experiment and user (required, positive), plus either step, or
// start+end+include for a range; no selector means "latest".
func (h *ResultsHandler) Download(w http.ResponseWriter, r *http.Request) {
	sel, ok := parseSelection(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid query parameters", r))
		return
	}

	plan, err := h.archive.Plan(r.Context(), sel)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", plan.Filename()))
	if err := plan.WriteTo(r.Context(), w); err != nil {
		// Headers are already out; all we can do is log and drop the stream.
		log.Printf("archive stream failed (experiment=%d user=%d): %v", sel.ExperimentID, sel.UserID, err)
	}
}

func parseSelection(r *http.Request) (models.Selection, bool) {
	var sel models.Selection

	experiment, ok := positiveQueryInt(r, "experiment")
	if !ok {
		return sel, false
	}
	user, ok := positiveQueryInt(r, "user")
	if !ok {
		return sel, false
	}
	sel.ExperimentID = experiment
	sel.UserID = user

	q := r.URL.Query()
	hasStep := q.Get("step") != ""
	hasRange := q.Get("start") != "" || q.Get("end") != ""
	if hasStep && hasRange {
		return sel, false
	}

	switch {
	case hasStep:
		step, err := strconv.Atoi(q.Get("step"))
		if err != nil || step < 0 {
			return sel, false
		}
		sel.Step = &step

	case hasRange:
		start, err := strconv.Atoi(q.Get("start"))
		if err != nil || start < 0 {
			return sel, false
		}
		end, err := strconv.Atoi(q.Get("end"))
		if err != nil || end < 0 {
			return sel, false
		}
		include := false
		if v := q.Get("include"); v != "" {
			include, err = strconv.ParseBool(v)
			if err != nil {
				return sel, false
			}
		}
		sel.Start = &start
		sel.End = &end
		sel.IncludeEnd = include
	}

	return sel, true
}
