package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trustpledge/pledged/internal/domain"
)

// ─── Registry Schema ────────────────────────────────────────────────────────

func registryMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			maker                 TEXT NOT NULL,
			maker_email           TEXT NOT NULL DEFAULT '',
			description           TEXT NOT NULL DEFAULT '',
			category              TEXT NOT NULL DEFAULT 'other',
			total_pc              INTEGER NOT NULL,
			pc_value              REAL NOT NULL,
			reward_type           TEXT NOT NULL DEFAULT 'cash',
			equity_amount         REAL,
			target_valuation      TEXT,
			target_member_count   INTEGER NOT NULL,
			current_member_count  INTEGER NOT NULL DEFAULT 0,
			deadline              TEXT NOT NULL DEFAULT '',
			settlement_condition  TEXT NOT NULL,
			settlement_detail     TEXT NOT NULL DEFAULT '',
			expected_activity     TEXT NOT NULL DEFAULT '',
			contribution_link     TEXT,
			proof_description     TEXT,
			legal_signature       TEXT NOT NULL,
			legal_signed_at       TEXT NOT NULL,
			status                TEXT NOT NULL DEFAULT 'active',
			created_at            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_maker_email ON projects(maker_email)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status)`,
	}
}

// ─── Registry Operations ────────────────────────────────────────────────────

// CreateProject validates and inserts a new project. The member counter
// starts at zero and the status at active regardless of the input; pool,
// value and target are frozen from here on.
func (d *DB) CreateProject(p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CurrentMemberCount = 0
	p.Status = domain.ProjectActive

	if err := p.Validate(); err != nil {
		return err
	}

	_, err := d.db.Exec(`
		INSERT INTO projects (
			id, name, maker, maker_email, description, category,
			total_pc, pc_value, reward_type, equity_amount, target_valuation,
			target_member_count, current_member_count, deadline,
			settlement_condition, settlement_detail, expected_activity,
			contribution_link, proof_description,
			legal_signature, legal_signed_at, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Maker, p.MakerEmail, p.Description, string(p.Category),
		p.TotalPC, p.PCValue, string(p.RewardType), nullIfZero(p.EquityAmount), nullIfEmpty(p.TargetValuation),
		p.TargetMemberCount, p.CurrentMemberCount, formatTime(p.Deadline),
		string(p.SettlementCondition), p.SettlementDetail, p.ExpectedActivity,
		nullIfEmpty(p.ContributionLink), nullIfEmpty(p.ProofDescription),
		p.LegalProtections.Signature, formatTime(p.LegalProtections.SignedAt),
		string(p.Status), formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (d *DB) GetProject(id string) (*domain.Project, error) {
	row := d.db.QueryRow(projectSelect+` WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects newest-first. With a maker email the list
// covers all of that maker's projects regardless of status; without one it
// covers active projects only (the public marketplace view).
func (d *DB) ListProjects(makerEmail string) ([]domain.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if makerEmail != "" {
		rows, err = d.db.Query(projectSelect+` WHERE maker_email = ? ORDER BY created_at DESC`, makerEmail)
	} else {
		rows, err = d.db.Query(projectSelect+` WHERE status = ? ORDER BY created_at DESC`, string(domain.ProjectActive))
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

// IncrementMemberCount bumps a project's member counter by one. The
// increment happens inside the database, never as fetch-then-write in Go,
// so concurrent joins cannot lose updates.
func (d *DB) IncrementMemberCount(id string) error {
	res, err := d.db.Exec(`UPDATE projects SET current_member_count = current_member_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment member count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// SetProjectStatus moves a project to completed or cancelled. Projects are
// never deleted.
func (d *DB) SetProjectStatus(id string, status domain.ProjectStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidProject, status)
	}
	res, err := d.db.Exec(`UPDATE projects SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

const projectSelect = `
	SELECT id, name, maker, maker_email, description, category,
	       total_pc, pc_value, reward_type, equity_amount, target_valuation,
	       target_member_count, current_member_count, deadline,
	       settlement_condition, settlement_detail, expected_activity,
	       contribution_link, proof_description,
	       legal_signature, legal_signed_at, status, created_at
	FROM projects`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*domain.Project, error) {
	var (
		p                                  domain.Project
		category, rewardType, status       string
		settlement                         string
		equity                             sql.NullFloat64
		valuation, link, proofDesc         sql.NullString
		deadline, signedAt, createdAt      string
	)
	err := r.Scan(
		&p.ID, &p.Name, &p.Maker, &p.MakerEmail, &p.Description, &category,
		&p.TotalPC, &p.PCValue, &rewardType, &equity, &valuation,
		&p.TargetMemberCount, &p.CurrentMemberCount, &deadline,
		&settlement, &p.SettlementDetail, &p.ExpectedActivity,
		&link, &proofDesc,
		&p.LegalProtections.Signature, &signedAt, &status, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = domain.ProjectCategory(category)
	p.RewardType = domain.RewardType(rewardType)
	p.SettlementCondition = domain.SettlementCondition(settlement)
	p.Status = domain.ProjectStatus(status)
	p.EquityAmount = equity.Float64
	p.TargetValuation = valuation.String
	p.ContributionLink = link.String
	p.ProofDescription = proofDesc.String
	p.Deadline = parseTime(deadline)
	p.LegalProtections.SignedAt = parseTime(signedAt)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func collectProjects(rows *sql.Rows) ([]domain.Project, error) {
	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func nullIfZero(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
