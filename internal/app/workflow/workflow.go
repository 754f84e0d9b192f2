// Package workflow is the contribution state machine: it orchestrates
// join → pending credit → maker decision → approved/rejected over the
// registry and ledger, and dispatches transition notifications.
//
// States per (project, contributor) pair:
//
//	NonExistent → Pending → {Approved, Rejected}
//
// Approved and Rejected are terminal. The ledger's uniqueness constraint
// and pending-status precondition are the authoritative guards; this
// package translates their failures into the expected user-facing
// outcomes instead of treating them as crashes.
package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/trustpledge/pledged/internal/domain"
	"github.com/trustpledge/pledged/internal/infra/sqlite"
)

// Notifier is the external email collaborator. Every call is best-effort:
// the workflow logs failures and never lets them fail a transition.
type Notifier interface {
	ContributionReceived(c domain.Credit, makerEmail string) error
	ContributionApproved(c domain.Credit) error
	ContributionRejected(c domain.Credit) error
}

// ─── Membership Policy ──────────────────────────────────────────────────────

// Policy selects when a join is reflected in the project's member counter.
// One policy per deployment; the two are never mixed.
type Policy string

const (
	// PolicyApprovalGated counts a member only when the maker approves.
	// Joins notify the maker and wait.
	PolicyApprovalGated Policy = "approval"

	// PolicyDirectIssuance counts a member immediately on join, for
	// deployments where contribution is self-evidently verifiable.
	PolicyDirectIssuance Policy = "direct"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyApprovalGated:
		return PolicyApprovalGated, nil
	case PolicyDirectIssuance:
		return PolicyDirectIssuance, nil
	}
	return "", fmt.Errorf("unknown membership policy %q", s)
}

// ─── Service ────────────────────────────────────────────────────────────────

// Service runs the contribution workflow against the store.
type Service struct {
	db       *sqlite.DB
	notifier Notifier
	policy   Policy
	logger   *slog.Logger
}

// New builds a workflow service.
func New(db *sqlite.DB, notifier Notifier, policy Policy, logger *slog.Logger) *Service {
	return &Service{db: db, notifier: notifier, policy: policy, logger: logger}
}

// Policy returns the configured membership policy.
func (s *Service) Policy() Policy { return s.policy }

// JoinResult is what the caller shows the contributor after a join.
type JoinResult struct {
	CreditID string              `json:"creditId"`
	PCAmount int64               `json:"pcAmount"`
	PCValue  float64             `json:"pcValue"`
	Status   domain.CreditStatus `json:"status"`
}

// Join submits a contribution request: it snapshots the project's terms
// into a pending ledger row and, depending on policy, either counts the
// member immediately or notifies the maker to decide.
func (s *Service) Join(projectID, email, name, proof string) (*JoinResult, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		joinsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrMissingIdentity
	}

	project, err := s.db.GetProject(projectID)
	if err != nil {
		joinsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	credit := domain.NewPendingCredit("", project, email, name, proof, timeNow())
	if err := s.db.InsertPendingCredit(&credit); err != nil {
		if err == domain.ErrAlreadyJoined {
			joinsTotal.WithLabelValues("duplicate").Inc()
		} else {
			joinsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	switch s.policy {
	case PolicyDirectIssuance:
		// The credit is earned on join; the counter moves now. The
		// increment is atomic in the database, so concurrent joins on
		// the same project cannot lose updates.
		if err := s.db.IncrementMemberCount(project.ID); err != nil {
			joinsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("count direct member: %w", err)
		}
	default:
		// Approval-gated: the counter waits for the maker. Tell them.
		s.dispatch("contribution received", func() error {
			return s.notifier.ContributionReceived(credit, project.MakerEmail)
		})
	}

	joinsTotal.WithLabelValues("issued").Inc()
	s.logger.Info("contribution request submitted",
		"project", project.ID, "contributor", email, "pc_amount", credit.PCAmount)

	return &JoinResult{
		CreditID: credit.ID,
		PCAmount: credit.PCAmount,
		PCValue:  credit.PCValue,
		Status:   credit.Status,
	}, nil
}

// Decide applies the maker's verdict to a pending credit. Approve under the
// approval-gated policy writes the ledger transition and the member-count
// increment as one transaction, so an approved credit is always reflected
// in the count. Reject requires a non-empty reason. The contributor is
// notified either way; delivery failure never fails the decision.
func (s *Service) Decide(creditID string, decision domain.Decision, rejectReason string) (domain.CreditStatus, error) {
	credit, err := s.db.GetCredit(creditID)
	if err != nil {
		return "", err
	}

	switch decision {
	case domain.DecisionApprove:
		if s.policy == PolicyApprovalGated {
			if _, err := s.db.ApproveCreditAndCount(creditID); err != nil {
				return "", err
			}
		} else {
			// Direct issuance already counted the member at join time.
			if err := s.db.TransitionCredit(creditID, domain.DecisionApprove, ""); err != nil {
				return "", err
			}
		}
		decisionsTotal.WithLabelValues("approve").Inc()
		credit.Status = domain.CreditApproved
		s.dispatch("contribution approved", func() error {
			return s.notifier.ContributionApproved(*credit)
		})

	case domain.DecisionReject:
		if err := s.db.TransitionCredit(creditID, domain.DecisionReject, rejectReason); err != nil {
			return "", err
		}
		decisionsTotal.WithLabelValues("reject").Inc()
		credit.Status = domain.CreditRejected
		credit.RejectReason = rejectReason
		s.dispatch("contribution rejected", func() error {
			return s.notifier.ContributionRejected(*credit)
		})

	default:
		return "", domain.ErrInvalidDecision
	}

	s.logger.Info("contribution decided",
		"credit", creditID, "decision", string(decision), "status", string(credit.Status))
	return credit.Status, nil
}

// dispatch runs a notification call, swallowing and logging any failure.
func (s *Service) dispatch(event string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		notifyFailuresTotal.Inc()
		s.logger.Warn("notification failed", "event", event, "err", err)
	}
}
