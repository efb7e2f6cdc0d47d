package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"trustlabel/internal/api"
	"trustlabel/internal/auth"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
	"trustlabel/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// authenticated validates the bearer token and stores the caller identity in
// the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := auth.Verify(s.secret, token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

func callerIdentity(r *http.Request) auth.Identity {
	identity, _ := r.Context().Value(identityKey).(auth.Identity)
	return identity
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listQueue(w, r)
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createEntryRequest struct {
	ProductID         string         `json:"productId"`
	Category          string         `json:"category"`
	Priority          string         `json:"priority,omitempty"`
	EstimatedDuration int            `json:"estimatedDuration,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	identity := callerIdentity(r)
	if identity.Role != queue.RoleBrand && identity.Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var priority queue.Priority
	if req.Priority != "" {
		parsed, ok := queue.ParsePriority(req.Priority)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown priority "+req.Priority)
			return
		}
		priority = parsed
	}

	entry, err := s.queueSvc.CreateQueueEntry(r.Context(), api.CreateRequest{
		ProductID:        req.ProductID,
		RequestedByID:    identity.UserID,
		Category:         req.Category,
		Priority:         priority,
		EstimatedMinutes: req.EstimatedDuration,
		Notes:            req.Notes,
		Metadata:         req.Metadata,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromEntry(entry))
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	identity := callerIdentity(r)
	query := r.URL.Query()

	filters := queue.Filters{
		Category: strings.TrimSpace(query.Get("category")),
	}
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+value)
			return
		}
		filters.Status = status
	}
	if value := strings.TrimSpace(query.Get("priority")); value != "" {
		priority, ok := queue.ParsePriority(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown priority "+value)
			return
		}
		filters.Priority = priority
	}
	if value := strings.TrimSpace(query.Get("assignedTo")); value != "" {
		filters.AssignedToID = value
	}

	// Brand callers only see their own submissions.
	switch identity.Role {
	case queue.RoleAdmin:
		filters.RequestedByID = strings.TrimSpace(query.Get("requestedBy"))
	default:
		filters.RequestedByID = identity.UserID
	}

	opts := queue.ListOptions{
		SortBy:    strings.TrimSpace(query.Get("sortBy")),
		SortOrder: strings.TrimSpace(query.Get("sortOrder")),
	}
	if value := query.Get("page"); value != "" {
		opts.Page, _ = strconv.Atoi(value)
	}
	if value := query.Get("limit"); value != "" {
		opts.Limit, _ = strconv.Atoi(value)
	}

	page, err := s.queueSvc.GetQueue(r.Context(), filters, opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleQueueItem routes /api/queue/{id} and its assign, status, and history
// subresources.
func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getEntry(w, r, id)
	case "assign":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.assignEntry(w, r, id)
	case "status":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.updateStatus(w, r, id)
	case "history":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getHistory(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	identity := callerIdentity(r)
	entry, err := s.queueSvc.GetEntry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !canViewEntry(identity, entry) {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
}

type assignRequest struct {
	ValidatorID string `json:"validatorId"`
}

func (s *Server) assignEntry(w http.ResponseWriter, r *http.Request, id string) {
	identity := callerIdentity(r)
	if identity.Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ValidatorID) == "" {
		s.writeError(w, http.StatusBadRequest, "validatorId is required")
		return
	}

	entry, err := s.queueSvc.AssignValidation(r.Context(), id, req.ValidatorID, identity.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	identity := callerIdentity(r)
	if identity.Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, ok := queue.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	entry, err := s.queueSvc.UpdateStatus(r.Context(), id, status, identity.UserID, req.Reason)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request, id string) {
	identity := callerIdentity(r)
	if identity.Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	records, err := s.queueSvc.GetHistory(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistoryRecords(records))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if callerIdentity(r).Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	metrics, err := s.queueSvc.GetQueueMetrics(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if callerIdentity(r).Role != queue.RoleAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.writeJSON(w, http.StatusOK, s.hub.Stats())
}

func canViewEntry(identity auth.Identity, entry *queue.Entry) bool {
	if identity.Role == queue.RoleAdmin {
		return true
	}
	return entry.RequestedByID == identity.UserID || entry.AssignedToID == identity.UserID
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, status, "internal error")
		return
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
