// Package api starts stage workflows over HTTP and reports their progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"sftgen/internal/app"
	"sftgen/internal/config"
	"sftgen/internal/models"
	"sftgen/internal/util"
	"sftgen/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// WorkflowClient is the part of tclient.Client the server uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	cfg      config.Config
	temporal WorkflowClient
}

func NewServer(cfg config.Config, temporal WorkflowClient) *Server {
	return &Server{cfg: cfg, temporal: temporal}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs/questions", s.handleStart(models.StageQuestions))
	mux.HandleFunc("/runs/answers", s.handleStart(models.StageAnswers))
	mux.HandleFunc("/runs/", s.handleRunScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStart(stage models.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			DocsDir     string `json:"docs_dir"`
			FilePattern string `json:"file_pattern"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
				return
			}
		}

		docsDir := strings.TrimSpace(req.DocsDir)
		if docsDir != "" {
			dir, err := util.WithinDir(s.cfg.DocsDir, docsDir)
			if err != nil {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid docs dir: %w", err))
				return
			}
			docsDir = dir
		}
		pattern := strings.TrimSpace(req.FilePattern)
		if strings.ContainsAny(pattern, `/\`) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid file pattern: %q", pattern))
			return
		}

		runID := uuid.NewString()
		opts := tclient.StartWorkflowOptions{
			ID:                                       workflows.WorkflowID(stage, runID),
			TaskQueue:                                s.cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
			WorkflowExecutionErrorWhenAlreadyStarted: true,
		}
		var (
			we  tclient.WorkflowRun
			err error
		)
		switch stage {
		case models.StageQuestions:
			we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.QuestionStageWorkflow, workflows.QuestionStageInput{
				RunID:       runID,
				DocsDir:     docsDir,
				FilePattern: pattern,
			})
		default:
			we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.AnswerStageWorkflow, workflows.AnswerStageInput{RunID: runID})
		}
		if err != nil {
			var started *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(err, &started) {
				writeErr(w, http.StatusConflict, err)
				return
			}
			writeErr(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"run_id":      runID,
			"stage":       stage,
			"workflow_id": we.GetID(),
			"temporal_id": we.GetRunID(),
		})
	}
}

// handleRunScoped serves /runs/{id}/progress and /runs/{id}/summary.
func (s *Server) handleRunScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := parts[0]
	if _, err := uuid.Parse(runID); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid run id"))
		return
	}
	switch parts[1] {
	case "progress":
		s.handleProgress(w, r, runID)
	case "summary":
		s.handleSummary(w, runID)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, runID string) {
	for _, stage := range []models.Stage{models.StageQuestions, models.StageAnswers} {
		resp, err := s.temporal.QueryWorkflow(r.Context(), workflows.WorkflowID(stage, runID), "", workflows.QueryGetProgress)
		if err != nil {
			continue
		}
		var prog workflows.StageProgress
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}
	// No queryable workflow; fall back to the summary written when the run finished.
	s.handleSummary(w, runID)
}

func (s *Server) handleSummary(w http.ResponseWriter, runID string) {
	b, err := os.ReadFile(app.SummaryPath(s.cfg.DataOutRoot, runID))
	if errors.Is(err, os.ErrNotExist) {
		writeErr(w, http.StatusNotFound, fmt.Errorf("run not found"))
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	var sum models.RunSummary
	if err := json.Unmarshal(b, &sum); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "SG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case status == http.StatusServiceUnavailable,
			strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SG-TMP-5002",
				Message: "Workflow service is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "SG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "SG-API-4009"
		msg = "A run with this id is already in progress."
	case status == http.StatusMethodNotAllowed:
		code = "SG-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "invalid run id"):
			msg = "Run id must be a UUID."
		case strings.Contains(raw, "invalid docs dir"):
			msg = "Documents directory must be inside the configured documents root."
		case strings.Contains(raw, "invalid file pattern"):
			msg = "File pattern must not contain path separators."
		}
	}
	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
