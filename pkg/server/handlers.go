package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Messages returned by the archive-now form.
const (
	MessageFinished  = "Archiving of records has finished successfully"
	MessageCancelled = "Archiving of records cancelled"
	MessageConfirm   = "Records outside the retention period will be archived"
)

// Paging of stub listings.
const (
	defaultItemLimit = 50
	maxItemLimit     = 500
)

type handlers struct {
	engine *archive.Engine
	runner Runner
	logger *slog.Logger
}

type statusResponse struct {
	Active          bool   `json:"active"`
	Warning         string `json:"warning,omitempty"`
	RetentionPeriod *int   `json:"retention_period"`
	DateCriterion   string `json:"date_criterion"`
	EarliestYear    *int   `json:"earliest_year"`
}

type archiveResponse struct {
	Message string             `json:"message"`
	Status  *statusResponse    `json:"status,omitempty"`
	Result  *archive.RunResult `json:"result,omitempty"`
}

type itemsResponse struct {
	Items  []*record.ArchiveItem `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) currentStatus() *statusResponse {
	s := h.engine.Settings()
	resp := &statusResponse{
		Active:          s.Status.Active,
		Warning:         s.Status.Warning,
		RetentionPeriod: s.Policy.RetentionPeriod,
		DateCriterion:   s.Policy.DateCriterion,
	}
	if year, ok := h.engine.EarliestYear(); ok {
		resp.EarliestYear = &year
	}
	return resp
}

// status reports the archive configuration and its warning.
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentStatus())
}

// confirm returns what an archive-now request would do.
func (h *handlers) confirm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, archiveResponse{Message: MessageConfirm, Status: h.currentStatus()})
}

// archiveNow handles the archive-now form. Without "submitted" it returns
// the confirmation details; button_cancel aborts; button_confirm runs an
// archive pass.
func (h *handlers) archiveNow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	switch {
	case r.PostForm.Get("submitted") == "":
		h.confirm(w, r)
		return
	case r.PostForm.Has("button_cancel"):
		writeJSON(w, http.StatusOK, archiveResponse{Message: MessageCancelled})
		return
	case !r.PostForm.Has("button_confirm"):
		h.confirm(w, r)
		return
	}

	status := h.currentStatus()
	if !status.Active {
		writeError(w, http.StatusConflict, status.Warning)
		return
	}

	res, err := h.runner.Run(r.Context())
	if errors.Is(err, archive.ErrArchiveDisabled) {
		writeError(w, http.StatusConflict, h.currentStatus().Warning)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive pass failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "archive pass requested",
		"queued", res.Queued, "submitted", res.Submitted)
	writeJSON(w, http.StatusOK, archiveResponse{Message: MessageFinished, Result: &res})
}

// listItems searches the archive catalog, newest modified first.
func (h *handlers) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), defaultItemLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxItemLimit)

	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	kind := record.Kind(q.Get("type"))
	if kind != "" && !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown type "+strconv.Quote(string(kind)))
		return
	}

	var items []*record.ArchiveItem
	err = h.engine.Store().View(r.Context(), func(rd store.Reader) error {
		var err error
		items, err = rd.SearchArchive(r.Context(), store.ArchiveQuery{
			Text:     q.Get("q"),
			ItemType: kind,
			Limit:    limit,
			Offset:   offset,
		})
		return err
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive search failed")
		return
	}
	if items == nil {
		items = []*record.ArchiveItem{}
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: items, Limit: limit, Offset: offset})
}

// getItem returns one stub by id.
func (h *handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var item *record.ArchiveItem
	err := h.engine.Store().View(r.Context(), func(rd store.Reader) error {
		var err error
		item, err = rd.ArchiveItem(r.Context(), id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "archive item "+strconv.Quote(id)+" not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive item lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "archive item lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
