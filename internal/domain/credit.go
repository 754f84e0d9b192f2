package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// A credit is one row in the pledge ledger: one contribution request by one
// contributor against one project. The (project, contributor-email) pair is
// unique — the storage layer enforces it, the workflow relies on it.

// CreditStatus is the state of a ledger entry. Pending is the only
// non-terminal state; a credit transitions exactly once.
type CreditStatus string

const (
	CreditPending  CreditStatus = "pending"
	CreditApproved CreditStatus = "approved"
	CreditRejected CreditStatus = "rejected"
)

// Valid reports whether the status is one of the closed set.
func (s CreditStatus) Valid() bool {
	return s == CreditPending || s == CreditApproved || s == CreditRejected
}

// Terminal reports whether the status admits no further transitions.
func (s CreditStatus) Terminal() bool {
	return s == CreditApproved || s == CreditRejected
}

// Decision is a maker's verdict on a pending credit.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a caller-supplied decision string.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", ErrInvalidDecision
}

// Credit is a ledger entry. Amount, per-credit value and settlement terms
// are snapshotted from the project at issuance time and frozen — later
// edits to the project never reach back into issued rows.
type Credit struct {
	ID                  string              `json:"id"`
	ProjectID           string              `json:"projectId"`
	ProjectName         string              `json:"projectName"`
	MakerName           string              `json:"makerName"`
	UserEmail           string              `json:"userEmail"`
	UserName            string              `json:"userName"`
	PCAmount            int64               `json:"pcAmount"`
	PCValue             float64             `json:"pcValue"`
	Proof               string              `json:"proof,omitempty"`
	SettlementCondition SettlementCondition `json:"settlementCondition"`
	SettlementDetail    string              `json:"settlementDetail"`
	Status              CreditStatus        `json:"status"`
	RejectReason        string              `json:"rejectReason,omitempty"`
	EarnedAt            time.Time           `json:"earnedAt"`
}

// NewPendingCredit builds the issuance-time snapshot for a join request.
// The caller supplies the id; everything project-derived is copied by value
// here so the row never holds a live reference to the project.
func NewPendingCredit(id string, p *Project, email, name, proof string, now time.Time) Credit {
	return Credit{
		ID:                  id,
		ProjectID:           p.ID,
		ProjectName:         p.Name,
		MakerName:           p.Maker,
		UserEmail:           email,
		UserName:            name,
		PCAmount:            p.PerShare(),
		PCValue:             p.PCValue,
		Proof:               proof,
		SettlementCondition: p.SettlementCondition,
		SettlementDetail:    p.SettlementDetail,
		Status:              CreditPending,
		EarnedAt:            now,
	}
}
