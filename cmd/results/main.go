package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"convfinqa-eval/internal/app"
	"convfinqa-eval/internal/httputil"
	"convfinqa-eval/internal/store"
)

type runResponse struct {
	ID             uuid.UUID  `json:"id"`
	Model          string     `json:"model"`
	DatasetPath    string     `json:"dataset_path"`
	SampleSize     int        `json:"sample_size"`
	Seed           int64      `json:"seed"`
	TaskCount      int        `json:"task_count,omitempty"`
	Status         string     `json:"status"`
	Accuracy       *float64   `json:"accuracy"`
	ReasoningScore *float64   `json:"reasoning_score"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

type outcomeResponse struct {
	RecordID       string   `json:"record_id"`
	Question       string   `json:"question"`
	Expected       string   `json:"expected"`
	Predicted      string   `json:"predicted"`
	Diff           float64  `json:"diff"`
	Result         string   `json:"result"`
	ReasoningScore *int     `json:"reasoning_score,omitempty"`
	StepList       []string `json:"step_list,omitempty"`
}

func main() {
	deps, err := app.BuildResults()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	r := httputil.NewRouter(deps.Log)
	r.Get("/api/runs", listRunsHandler(deps))
	r.Get("/api/runs/{id}", getRunHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("results service listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server error", "err", err)
	}
}

func listRunsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 200 {
				httputil.Fail(deps.Log, w, "limit must be an integer between 1 and 200", err, http.StatusBadRequest)
				return
			}
			limit = n
		}

		runs, err := deps.Store.ListRuns(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list runs", err, http.StatusInternalServerError)
			return
		}

		out := make([]runResponse, len(runs))
		for i, run := range runs {
			out[i] = toRunResponse(run)
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": out})
	}
}

func getRunHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid run id", err, http.StatusBadRequest)
			return
		}

		run, err := deps.Store.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrRunNotFound) {
			httputil.Fail(deps.Log, w, "run not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load run", err, http.StatusInternalServerError)
			return
		}

		outcomes, err := deps.Store.ListOutcomes(r.Context(), id)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load outcomes", err, http.StatusInternalServerError)
			return
		}

		out := make([]outcomeResponse, len(outcomes))
		for i, o := range outcomes {
			out[i] = outcomeResponse{
				RecordID:       o.RecordID,
				Question:       o.Question,
				Expected:       o.Expected,
				Predicted:      o.Predicted,
				Diff:           o.Diff,
				Result:         o.Result,
				ReasoningScore: o.ReasoningScore,
				StepList:       o.StepList,
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"run":      toRunResponse(run),
			"outcomes": out,
		})
	}
}

func toRunResponse(run store.Run) runResponse {
	return runResponse{
		ID:             run.ID,
		Model:          run.Model,
		DatasetPath:    run.DatasetPath,
		SampleSize:     run.SampleSize,
		Seed:           run.Seed,
		TaskCount:      run.TaskCount,
		Status:         string(run.Status),
		Accuracy:       run.Accuracy,
		ReasoningScore: run.ReasoningScore,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
}
