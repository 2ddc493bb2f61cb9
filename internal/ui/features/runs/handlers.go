// Package runs serves benchmark runs as live charts and JSON.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/internal/ui/notifier"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

// latestID is the run id that follows whichever run started last.
const latestID = "latest"

// historyLimit bounds the run history shown next to the charts.
const historyLimit = 20

// Handlers provides HTTP handlers for the runs feature.
type Handlers struct {
	store    core.Store
	notifier *notifier.Notifier
	isDev    bool
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store core.Store, notify *notifier.Notifier, isDev bool, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		store:    store,
		notifier: notify,
		isDev:    isDev,
		logger:   logger,
	}
}

// ChartPage renders the charts of the run named by ?run= (latest by default).
func (h *Handlers) ChartPage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("run")
	follow := id
	if follow == "" {
		follow = latestID
	}

	data, err := h.buildViewData(r.Context(), follow)
	if err != nil && !errors.Is(err, state.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	title := "Latest run"
	if data.Run != nil {
		title = "Run " + shortID(data.Run.ID)
	}

	updates := "/api/runs/" + follow + "/updates"
	if err := Page(title, updates, h.isDev, RunView(data)).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ChartUpdates is the long-lived SSE endpoint behind a chart page. It sends
// nothing initially and re-patches the view whenever the followed run (or,
// for "latest", any run) changes.
func (h *Handlers) ChartUpdates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	follow := id
	if id == latestID {
		follow = ""
	}

	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if !u.Concerns(follow) {
				continue
			}
			data, err := h.buildViewData(ctx, id)
			if err != nil {
				_ = sse.ConsoleError(err)
				continue
			}
			if err := sse.PatchElementTempl(RunView(data)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// ListRuns returns recent runs (without timings) as JSON. ?limit= defaults
// to 50.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}
	h.writeJSON(w, runs)
}

// RunResults returns a run in its export shape.
func (h *Handlers) RunResults(w http.ResponseWriter, r *http.Request) {
	run, err := h.loadRun(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, state.ResultsOf(run))
}

// loadRun loads a run by id; "latest" and "" select the most recent run.
func (h *Handlers) loadRun(ctx context.Context, id string) (*core.Run, error) {
	if id == "" || id == latestID {
		run, err := h.store.GetLatestRun(ctx)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("%w: no runs recorded", state.ErrRunNotFound)
		}
		return run, nil
	}
	return h.store.GetRun(ctx, id)
}

func (h *Handlers) buildViewData(ctx context.Context, id string) (ViewData, error) {
	var data ViewData

	runs, err := h.store.ListRuns(ctx, historyLimit)
	if err != nil {
		return data, err
	}
	data.Runs = runs

	data.Run, err = h.loadRun(ctx, id)
	if err != nil {
		return data, err
	}
	return data, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.logger.Debug("failed to write response", slog.String("error", err.Error()))
	}
}
