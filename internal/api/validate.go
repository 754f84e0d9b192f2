package api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trustpledge/pledged/internal/domain"
)

// ─── Request Validation ─────────────────────────────────────────────────────
// Struct-tag validation runs at the edge so malformed registrations are
// rejected before they reach the store; domain.Validate re-checks the
// business invariants underneath.

var validate = validator.New()

type createProjectRequest struct {
	Name                string  `json:"name" validate:"required"`
	Maker               string  `json:"maker" validate:"required"`
	MakerEmail          string  `json:"makerEmail" validate:"required,email"`
	Description         string  `json:"description"`
	Category            string  `json:"category" validate:"required,oneof=tech health finance education social ecommerce ai other"`
	TotalPC             int64   `json:"totalPC" validate:"required,gt=0"`
	PCValue             float64 `json:"pcValue" validate:"required,gt=0"`
	RewardType          string  `json:"rewardType" validate:"omitempty,oneof=cash equity"`
	EquityAmount        float64 `json:"equityAmount" validate:"omitempty,gt=0"`
	TargetValuation     string  `json:"targetValuation"`
	TargetMemberCount   int64   `json:"targetMemberCount" validate:"required,min=1"`
	Deadline            string  `json:"deadline" validate:"required"`
	SettlementCondition string  `json:"settlementCondition" validate:"required,oneof=revenue funding milestone exit"`
	SettlementDetail    string  `json:"settlementDetail"`
	ExpectedActivity    string  `json:"expectedActivity"`
	ContributionLink    string  `json:"contributionLink" validate:"omitempty,url"`
	ProofDescription    string  `json:"proofDescription"`
	LegalProtections    struct {
		Signature string `json:"signature" validate:"required"`
		SignedAt  string `json:"signedAt" validate:"required"`
	} `json:"legalProtections"`
}

func (r *createProjectRequest) validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid project registration: %w", err)
	}
	if _, err := parseDate(r.Deadline); err != nil {
		return fmt.Errorf("invalid deadline: %w", err)
	}
	if _, err := parseDate(r.LegalProtections.SignedAt); err != nil {
		return fmt.Errorf("invalid legal attestation timestamp: %w", err)
	}
	return nil
}

func (r *createProjectRequest) toDomain() *domain.Project {
	deadline, _ := parseDate(r.Deadline)
	signedAt, _ := parseDate(r.LegalProtections.SignedAt)

	rewardType := domain.RewardType(r.RewardType)
	if r.RewardType == "" {
		rewardType = domain.RewardCash
	}

	return &domain.Project{
		Name:                r.Name,
		Maker:               r.Maker,
		MakerEmail:          r.MakerEmail,
		Description:         r.Description,
		Category:            domain.ProjectCategory(r.Category),
		TotalPC:             r.TotalPC,
		PCValue:             r.PCValue,
		RewardType:          rewardType,
		EquityAmount:        r.EquityAmount,
		TargetValuation:     r.TargetValuation,
		TargetMemberCount:   r.TargetMemberCount,
		Deadline:            deadline,
		SettlementCondition: domain.SettlementCondition(r.SettlementCondition),
		SettlementDetail:    r.SettlementDetail,
		ExpectedActivity:    r.ExpectedActivity,
		ContributionLink:    r.ContributionLink,
		ProofDescription:    r.ProofDescription,
		LegalProtections: domain.LegalProtection{
			Signature: r.LegalProtections.Signature,
			SignedAt:  signedAt,
		},
	}
}

type joinRequest struct {
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
	Proof     string `json:"proof"`
}

type decideRequest struct {
	Action       string `json:"action"`
	RejectReason string `json:"rejectReason"`
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
