package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustpledge/pledged/internal/domain"
)

// ─── Projects ───────────────────────────────────────────────────────────────

// handleListProjects returns the marketplace listing.
// GET /api/projects              — active projects, newest first
// GET /api/projects?makerEmail=x — all of one maker's projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	makerEmail := r.URL.Query().Get("makerEmail")
	projects, err := s.db.ListProjects(makerEmail)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// handleCreateProject registers a new project.
// POST /api/projects
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	project := req.toDomain()
	if err := s.db.CreateProject(project); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("project registered", "id", project.ID, "maker", project.MakerEmail)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"id":      project.ID,
	})
}

// ─── Contribution Workflow ──────────────────────────────────────────────────

// handleJoin submits a contribution request against a project.
// POST /api/projects/{id}/join
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}

	res, err := s.workflow.Join(projectID, req.UserEmail, req.UserName, req.Proof)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"creditId": res.CreditID,
		"pcAmount": res.PCAmount,
		"pcValue":  res.PCValue,
		"status":   res.Status,
	})
}

// handleMyCredits returns a contributor's ledger entries, newest first.
// GET /api/credits?email=a@x.com
func (s *Server) handleMyCredits(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "validation", "email is required")
		return
	}
	credits, err := s.db.CreditsByContributor(email)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// handleContributions backs the maker dashboard: all contribution requests
// against the maker's projects, optionally filtered by status.
// GET /api/contributions?makerEmail=x&status=pending|approved|rejected|all
func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	makerEmail := r.URL.Query().Get("makerEmail")
	if makerEmail == "" {
		writeError(w, http.StatusBadRequest, "validation", "makerEmail is required")
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "all"
	}

	projects, err := s.db.ListProjects(makerEmail)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	credits, err := s.db.CreditsByProjects(ids, status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// handleDecide applies a maker's approve/reject verdict to a credit.
// PATCH /api/contributions/{id}
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	creditID := chi.URLParam(r, "id")

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	decision, err := domain.ParseDecision(req.Action)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status, err := s.workflow.Decide(creditID, decision, req.RejectReason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  status,
	})
}

// ─── Admin ──────────────────────────────────────────────────────────────────

// handleAdminStats returns aggregate counts plus full listings.
// GET /api/admin/stats?secret=...
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuthorized(r) {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	stats, err := s.db.AdminStats()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	projects, err := s.db.AllProjects()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	credits, err := s.db.AllCredits()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":         stats,
		"projects":      projects,
		"contributions": credits,
	})
}

// handleSetProjectStatus moves a project to completed or cancelled.
// PATCH /api/admin/projects/{id}/status?secret=...
func (s *Server) handleSetProjectStatus(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuthorized(r) {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.db.SetProjectStatus(id, domain.ProjectStatus(req.Status)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  req.Status,
	})
}
