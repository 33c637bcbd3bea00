package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/bobmcallan/mediaqueue/internal/task"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorToStatus(err), errorResponse{Error: err.Error()})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var input task.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, task.ErrInvalidInput)
		return
	}

	created, err := s.Task.Submit(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := interfaces.ListFilter{}

	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		filter.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if raw := q.Get("skip"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Skip = n
		}
	}

	tasks, err := s.Task.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listTasksResponse{Tasks: tasks, Limit: filter.Limit, Skip: filter.Skip})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	got, err := s.Task.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := s.Task.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Mongo: "ok"}
	status := http.StatusOK

	if err := s.Store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Mongo = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Counters:    s.Metrics.Read(),
		QueueDepths: s.queueDepths(r),
	})
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboardStatsResponse{
		Counters:    s.Metrics.Read(),
		QueueDepths: s.queueDepths(r),
	})
}
