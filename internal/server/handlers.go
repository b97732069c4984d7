package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/cluster"
	"github.com/hyperjump/ruiji/internal/export"
	"github.com/hyperjump/ruiji/internal/job"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
)

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("start job request", zap.String("folder", req.Folder), zap.Strings("extensions", req.Extensions))
	runID, err := s.session.Start(req.Folder, req.Extensions)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	root := s.session.Root()
	if s.watch != nil {
		if err := s.watch.Watch(root, s.session.Extensions()); err != nil {
			s.logger.Warn("watch job folder failed", zap.String("root", root), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusAccepted, models.JobResponse{Status: "started", RunID: runID, Root: root})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	s.respondJSON(w, http.StatusOK, models.ProgressResponse{
		Progress:   st.Progress.Percent(),
		Processing: st.Progress.Running,
		TimeLeft:   st.Progress.TimeLeft(),
		Processed:  st.Progress.Processed,
		Total:      st.Progress.Total,
		Failed:     st.Failed,
		State:      st.State.String(),
		Stale:      st.Stale,
		Root:       st.Root,
	})
}

func (s *Server) threshold(r *http.Request) (float64, error) {
	return cluster.ParseThreshold(r.URL.Query().Get("threshold"), s.config.Cluster.ThresholdOrDefault())
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	threshold, err := s.threshold(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	root, clusters, err := s.session.RootedClusters(threshold)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	out := make([][]models.ImageRef, len(clusters))
	for i, c := range clusters {
		out[i] = models.NewImageRefs(root, c)
	}
	s.respondJSON(w, http.StatusOK, models.ClustersResponse{
		Threshold: threshold,
		Count:     len(out),
		Clusters:  out,
	})
}

func (s *Server) handleUnclustered(w http.ResponseWriter, r *http.Request) {
	threshold, err := s.threshold(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortBy, err := cluster.ParseSortBy(r.URL.Query().Get("sort_by"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	root, paths, err := s.session.RootedUnclustered(threshold, sortBy)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.UnclusteredResponse{
		Threshold: threshold,
		SortBy:    sortBy.String(),
		Count:     len(paths),
		Images:    models.NewImageRefs(root, paths),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("export request", zap.Int("selected", len(req.Selected)))
	res, err := s.exporter.Export(r.Context(), s.session.Root(), req.Selected)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	failed := make([]models.ExportFailure, len(res.Failed))
	for i, f := range res.Failed {
		failed[i] = models.ExportFailure{Path: f.Path, Error: f.Err.Error()}
	}
	s.respondJSON(w, http.StatusOK, models.ExportResponse{
		Status:       "Export completed.",
		ExportFolder: res.ExportRoot,
		Copied:       res.Copied,
		Failed:       failed,
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path, ok := s.session.Lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	failures := s.session.Failures()
	out := make([]models.FileFailure, len(failures))
	for i, f := range failures {
		out[i] = models.FileFailure{Path: f.Path, Error: f.Err.Error()}
	}
	s.respondJSON(w, http.StatusOK, models.FailuresResponse{Count: len(out), Failures: out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	ctx := r.Context()
	runs, err := s.history.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Error("history: list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.history.CountRuns(ctx)
	if err != nil {
		s.logger.Error("history: count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.JobRun{}
	}
	resp := models.HistoryResponse{Runs: runs, TotalRuns: total}
	if diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(s.config.Storage.HistoryPath)...); err == nil {
		resp.DiskUsageBytes = &diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrInvalidPath),
		errors.Is(err, cluster.ErrInvalidThreshold),
		errors.Is(err, cluster.ErrInvalidSort),
		errors.Is(err, export.ErrNoSelection),
		errors.Is(err, export.ErrNoRoot):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrJobRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
