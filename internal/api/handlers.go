package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// maxPageSize caps the limit query parameter.
const maxPageSize = 500

type createSearchRequest struct {
	discovery.SearchRequest
	// Enrich defaults to true.
	Enrich *bool `json:"enrich"`
}

type leadsResponse struct {
	Leads  []model.Lead `json:"leads"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.searcher.CreateSearch(r.Context(), req.SearchRequest)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	withEnrichment := req.Enrich == nil || *req.Enrich
	s.runBackground(job.ID, func(ctx context.Context) error {
		return s.searcher.Process(ctx, job.ID, withEnrichment)
	})
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.store.ListJobs(r.Context(), store.JobFilter{
		Status: model.JobStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.SearchJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) enrichJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	started := s.runBackground(jobID, func(ctx context.Context) error {
		_, err := s.enricher.RunJob(ctx, jobID)
		return err
	})
	if !started {
		writeError(w, http.StatusConflict, "job already has work in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "accepted"})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := leadFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, total, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leadsResponse{Leads: leads, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context(), r.URL.Query().Get("job_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) auditLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.enricher.AuditLead(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) rescore(w http.ResponseWriter, r *http.Request) {
	changed, err := s.enricher.RescoreAll(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

// leadFilter builds a LeadFilter from query parameters.
func leadFilter(q url.Values) (store.LeadFilter, error) {
	f := store.LeadFilter{
		JobID:            q.Get("job_id"),
		PlaceID:          q.Get("place_id"),
		Tier:             model.Tier(q.Get("tier")),
		EnrichmentStatus: model.EnrichmentStatus(q.Get("enrichment_status")),
		OutreachStatus:   model.OutreachStatus(q.Get("outreach_status")),
		Category:         q.Get("category"),
		City:             q.Get("city"),
		State:            q.Get("state"),
	}

	var err error
	if v := q.Get("min_score"); v != "" {
		if f.MinScore, err = strconv.Atoi(v); err != nil {
			return f, errors.New("min_score must be an integer")
		}
	}
	if f.Sort, err = store.ParseSortKey(q.Get("sort")); err != nil {
		return f, err
	}
	if f.Dir, err = store.ParseSortDir(q.Get("dir")); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = paging(q); err != nil {
		return f, err
	}
	return f, nil
}

// paging parses limit and offset. A missing limit defaults to 100.
func paging(q url.Values) (limit, offset int, err error) {
	limit = 100
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// writeServiceError maps pipeline errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, discovery.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("api: write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
