package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustpledge/pledged/internal/domain"
)

// ─── Ledger Schema ──────────────────────────────────────────────────────────

func ledgerMigrations() []string {
	return []string{
		// One row per contribution request. UNIQUE(project_id, user_email)
		// is the authoritative guard against double joins — concurrent
		// inserts for the same pair resolve here, not in application code.
		`CREATE TABLE IF NOT EXISTS credits (
			id                    TEXT PRIMARY KEY,
			project_id            TEXT NOT NULL REFERENCES projects(id),
			project_name          TEXT NOT NULL,
			maker_name            TEXT NOT NULL,
			user_email            TEXT NOT NULL,
			user_name             TEXT NOT NULL,
			pc_amount             INTEGER NOT NULL,
			pc_value              REAL NOT NULL,
			proof                 TEXT,
			settlement_condition  TEXT NOT NULL,
			settlement_detail     TEXT NOT NULL DEFAULT '',
			status                TEXT NOT NULL DEFAULT 'pending',
			reject_reason         TEXT,
			earned_at             TEXT NOT NULL,
			UNIQUE(project_id, user_email)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_user_email ON credits(user_email)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_project ON credits(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_status ON credits(status)`,
	}
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// InsertPendingCredit inserts a new ledger row in the pending state.
// A second row for the same (project, contributor-email) pair fails with
// domain.ErrAlreadyJoined; the existing row is never overwritten.
func (d *DB) InsertPendingCredit(c *domain.Credit) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.EarnedAt.IsZero() {
		c.EarnedAt = time.Now()
	}
	c.Status = domain.CreditPending

	_, err := d.db.Exec(`
		INSERT INTO credits (
			id, project_id, project_name, maker_name, user_email, user_name,
			pc_amount, pc_value, proof, settlement_condition, settlement_detail,
			status, earned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.ProjectName, c.MakerName, c.UserEmail, c.UserName,
		c.PCAmount, c.PCValue, nullIfEmpty(c.Proof),
		string(c.SettlementCondition), c.SettlementDetail,
		string(c.Status), formatTime(c.EarnedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

// GetCredit retrieves a ledger entry by id.
func (d *DB) GetCredit(id string) (*domain.Credit, error) {
	row := d.db.QueryRow(creditSelect+` WHERE id = ?`, id)
	c, err := scanCredit(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCreditNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credit: %w", err)
	}
	return c, nil
}

// CreditsByContributor returns all of a contributor's entries, newest-first.
func (d *DB) CreditsByContributor(email string) ([]domain.Credit, error) {
	rows, err := d.db.Query(creditSelect+` WHERE user_email = ? ORDER BY earned_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("credits by contributor: %w", err)
	}
	defer rows.Close()
	return collectCredits(rows)
}

// CreditsByProjects returns entries for a set of projects, newest-first,
// optionally narrowed to one status ("" and "all" disable the filter).
// Backs the maker dashboard.
func (d *DB) CreditsByProjects(projectIDs []string, status string) ([]domain.Credit, error) {
	if len(projectIDs) == 0 {
		return []domain.Credit{}, nil
	}

	placeholders := strings.Repeat("?,", len(projectIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(projectIDs)+1)
	for _, id := range projectIDs {
		args = append(args, id)
	}

	q := creditSelect + ` WHERE project_id IN (` + placeholders + `)`
	if status != "" && status != "all" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY earned_at DESC`

	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("credits by projects: %w", err)
	}
	defer rows.Close()
	return collectCredits(rows)
}

// TransitionCredit applies a maker's decision to a pending entry. The
// pending precondition lives in the UPDATE itself, so two concurrent
// decisions resolve to exactly one winner; the loser sees ErrAlreadyDecided.
func (d *DB) TransitionCredit(id string, decision domain.Decision, rejectReason string) error {
	newStatus, reason, err := transitionTarget(decision, rejectReason)
	if err != nil {
		return err
	}

	res, err := d.db.Exec(`
		UPDATE credits SET status = ?, reject_reason = ?
		WHERE id = ? AND status = ?`,
		string(newStatus), reason, id, string(domain.CreditPending),
	)
	if err != nil {
		return fmt.Errorf("transition credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return transitionFailure(d.db, id)
	}
	return nil
}

// ApproveCreditAndCount approves a pending entry and increments its
// project's member counter in one transaction, so an approved credit can
// never be left out of the count. Returns the project id on success.
// This is the approval-gated membership variant's decision write.
func (d *DB) ApproveCreditAndCount(id string) (string, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE credits SET status = ?
		WHERE id = ? AND status = ?`,
		string(domain.CreditApproved), id, string(domain.CreditPending),
	)
	if err != nil {
		return "", fmt.Errorf("approve credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		// Inspect through the transaction: it holds the connection.
		return "", transitionFailure(tx, id)
	}

	var projectID string
	if err := tx.QueryRow(`SELECT project_id FROM credits WHERE id = ?`, id).Scan(&projectID); err != nil {
		return "", fmt.Errorf("approve credit: %w", err)
	}
	if _, err := tx.Exec(`UPDATE projects SET current_member_count = current_member_count + 1 WHERE id = ?`, projectID); err != nil {
		return "", fmt.Errorf("count approved member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit approve tx: %w", err)
	}
	return projectID, nil
}

// transitionTarget maps a decision to its terminal status, enforcing the
// non-empty reason rule on reject.
func transitionTarget(decision domain.Decision, rejectReason string) (domain.CreditStatus, any, error) {
	switch decision {
	case domain.DecisionApprove:
		return domain.CreditApproved, nil, nil
	case domain.DecisionReject:
		if strings.TrimSpace(rejectReason) == "" {
			return "", nil, domain.ErrEmptyReason
		}
		return domain.CreditRejected, rejectReason, nil
	}
	return "", nil, domain.ErrInvalidDecision
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// transitionFailure distinguishes a missing entry from an already-decided
// one after a guarded UPDATE touched zero rows.
func transitionFailure(q queryRower, id string) error {
	var status string
	err := q.QueryRow(`SELECT status FROM credits WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.ErrCreditNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect credit: %w", err)
	}
	return domain.ErrAlreadyDecided
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

const creditSelect = `
	SELECT id, project_id, project_name, maker_name, user_email, user_name,
	       pc_amount, pc_value, proof, settlement_condition, settlement_detail,
	       status, reject_reason, earned_at
	FROM credits`

func scanCredit(r rowScanner) (*domain.Credit, error) {
	var (
		c                  domain.Credit
		proof, reason      sql.NullString
		settlement, status string
		earnedAt           string
	)
	err := r.Scan(
		&c.ID, &c.ProjectID, &c.ProjectName, &c.MakerName, &c.UserEmail, &c.UserName,
		&c.PCAmount, &c.PCValue, &proof, &settlement, &c.SettlementDetail,
		&status, &reason, &earnedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Proof = proof.String
	c.RejectReason = reason.String
	c.SettlementCondition = domain.SettlementCondition(settlement)
	c.Status = domain.CreditStatus(status)
	c.EarnedAt = parseTime(earnedAt)
	return &c, nil
}

func collectCredits(rows *sql.Rows) ([]domain.Credit, error) {
	credits := []domain.Credit{}
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		credits = append(credits, *c)
	}
	return credits, rows.Err()
}
