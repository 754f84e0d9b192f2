package sqlite

import (
	"fmt"

	"github.com/trustpledge/pledged/internal/domain"
)

// ─── Admin Aggregation ──────────────────────────────────────────────────────
// The admin view recomputes its numbers by scanning the registry and ledger
// on every read. No materialized counters to keep in sync.

// AdminStats returns aggregate counts over projects and credits.
func (d *DB) AdminStats() (domain.AdminStats, error) {
	var s domain.AdminStats

	err := d.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0)
		FROM projects`).Scan(&s.TotalProjects, &s.ActiveProjects)
	if err != nil {
		return s, fmt.Errorf("project stats: %w", err)
	}

	err = d.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending'  THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM credits`).Scan(
		&s.TotalContributions, &s.PendingContributions,
		&s.ApprovedContributions, &s.RejectedContributions,
	)
	if err != nil {
		return s, fmt.Errorf("credit stats: %w", err)
	}
	return s, nil
}

// AllProjects returns every project regardless of status, newest-first.
// Admin view only.
func (d *DB) AllProjects() ([]domain.Project, error) {
	rows, err := d.db.Query(projectSelect + ` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("all projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

// AllCredits returns every ledger entry, newest-first. Admin view only.
func (d *DB) AllCredits() ([]domain.Credit, error) {
	rows, err := d.db.Query(creditSelect + ` ORDER BY earned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("all credits: %w", err)
	}
	defer rows.Close()
	return collectCredits(rows)
}
