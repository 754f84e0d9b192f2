// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Project Enums ──────────────────────────────────────────────────────────

// ProjectCategory classifies a project on the marketplace.
type ProjectCategory string

const (
	CategoryTech      ProjectCategory = "tech"
	CategoryHealth    ProjectCategory = "health"
	CategoryFinance   ProjectCategory = "finance"
	CategoryEducation ProjectCategory = "education"
	CategorySocial    ProjectCategory = "social"
	CategoryEcommerce ProjectCategory = "ecommerce"
	CategoryAI        ProjectCategory = "ai"
	CategoryOther     ProjectCategory = "other"
)

// Valid reports whether the category is one of the closed set.
func (c ProjectCategory) Valid() bool {
	switch c {
	case CategoryTech, CategoryHealth, CategoryFinance, CategoryEducation,
		CategorySocial, CategoryEcommerce, CategoryAI, CategoryOther:
		return true
	}
	return false
}

// SettlementCondition is the trigger under which issued credits settle.
type SettlementCondition string

const (
	SettleRevenue   SettlementCondition = "revenue"
	SettleFunding   SettlementCondition = "funding"
	SettleMilestone SettlementCondition = "milestone"
	SettleExit      SettlementCondition = "exit"
)

// Valid reports whether the settlement condition is one of the closed set.
func (s SettlementCondition) Valid() bool {
	switch s {
	case SettleRevenue, SettleFunding, SettleMilestone, SettleExit:
		return true
	}
	return false
}

// RewardType distinguishes cash-settled pools from equity-denominated ones.
type RewardType string

const (
	RewardCash   RewardType = "cash"
	RewardEquity RewardType = "equity"
)

// Valid reports whether the reward type is one of the closed set.
func (r RewardType) Valid() bool {
	return r == RewardCash || r == RewardEquity
}

// ProjectStatus is the lifecycle state of a project. Projects are never
// deleted; they transition to completed or cancelled instead.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Valid reports whether the status is one of the closed set.
func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectCompleted || s == ProjectCancelled
}

// ─── Project Types ──────────────────────────────────────────────────────────

// LegalProtection is the maker's attestation to the platform's protection
// clauses, captured at registration time.
type LegalProtection struct {
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signedAt"`
}

// Project is a maker's registered project with its pledge-credit pool and
// settlement terms. TotalPC and TargetMemberCount are fixed at creation;
// the only mutation after creation is the member counter and the status.
type Project struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Maker              string              `json:"maker"`
	MakerEmail         string              `json:"makerEmail"`
	Description        string              `json:"description"`
	Category           ProjectCategory     `json:"category"`
	TotalPC            int64               `json:"totalPC"`
	PCValue            float64             `json:"pcValue"`
	RewardType         RewardType          `json:"rewardType"`
	EquityAmount       float64             `json:"equityAmount,omitempty"`
	TargetValuation    string              `json:"targetValuation,omitempty"`
	TargetMemberCount  int64               `json:"targetMemberCount"`
	CurrentMemberCount int64               `json:"currentMemberCount"`
	Deadline           time.Time           `json:"deadline"`
	SettlementCondition SettlementCondition `json:"settlementCondition"`
	SettlementDetail   string              `json:"settlementDetail"`
	ExpectedActivity   string              `json:"expectedActivity"`
	ContributionLink   string              `json:"contributionLink,omitempty"`
	ProofDescription   string              `json:"proofDescription,omitempty"`
	LegalProtections   LegalProtection     `json:"legalProtections"`
	Status             ProjectStatus       `json:"status"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// PerShare returns the pledge credits one contributor earns on this project:
// floor(total pool / target member count). Integer floor division is
// intentional — the fractional remainder is forfeited, not distributed, so
// shares stay integral. A pool smaller than the target yields zero.
func (p *Project) PerShare() int64 {
	if p.TargetMemberCount <= 0 {
		return 0
	}
	return p.TotalPC / p.TargetMemberCount
}

// Validate enforces the registration invariants: positive pool, value and
// target, closed enum values, and a present legal attestation.
func (p *Project) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	case p.Maker == "":
		return fmt.Errorf("%w: maker is required", ErrInvalidProject)
	case p.TotalPC <= 0:
		return fmt.Errorf("%w: total pool must be positive", ErrInvalidProject)
	case p.PCValue <= 0:
		return fmt.Errorf("%w: per-credit value must be positive", ErrInvalidProject)
	case p.TargetMemberCount < 1:
		return fmt.Errorf("%w: target member count must be at least 1", ErrInvalidProject)
	case !p.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProject, p.Category)
	case !p.SettlementCondition.Valid():
		return fmt.Errorf("%w: unknown settlement condition %q", ErrInvalidProject, p.SettlementCondition)
	case !p.RewardType.Valid():
		return fmt.Errorf("%w: unknown reward type %q", ErrInvalidProject, p.RewardType)
	case p.LegalProtections.Signature == "" || p.LegalProtections.SignedAt.IsZero():
		return fmt.Errorf("%w: legal attestation is required", ErrInvalidProject)
	}
	return nil
}

// ─── Admin Aggregates ───────────────────────────────────────────────────────

// AdminStats is the aggregate view over the registry and ledger, recomputed
// by scanning on read — there is no materialized cache to drift.
type AdminStats struct {
	TotalProjects        int64 `json:"totalProjects"`
	ActiveProjects       int64 `json:"activeProjects"`
	TotalContributions   int64 `json:"totalContributions"`
	PendingContributions int64 `json:"pendingContributions"`
	ApprovedContributions int64 `json:"approvedContributions"`
	RejectedContributions int64 `json:"rejectedContributions"`
}
