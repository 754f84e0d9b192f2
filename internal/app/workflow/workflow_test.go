package workflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/trustpledge/pledged/internal/domain"
	"github.com/trustpledge/pledged/internal/infra/sqlite"
)

// recordingNotifier captures dispatched notifications; fail makes every
// delivery error, to prove failures are swallowed.
type recordingNotifier struct {
	mu       sync.Mutex
	received []string // maker emails notified of new contributions
	approved []domain.Credit
	rejected []domain.Credit
	fail     bool
}

func (n *recordingNotifier) ContributionReceived(c domain.Credit, makerEmail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, makerEmail)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (n *recordingNotifier) ContributionApproved(c domain.Credit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, c)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (n *recordingNotifier) ContributionRejected(c domain.Credit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, c)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func newTestService(t *testing.T, policy Policy) (*Service, *sqlite.DB, *recordingNotifier) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, notifier, policy, logger), db, notifier
}

func registerProject(t *testing.T, db *sqlite.DB, pool, target int64, value float64) *domain.Project {
	t.Helper()
	p := &domain.Project{
		Name:                "Solar Kettle",
		Maker:               "Kim",
		MakerEmail:          "kim@maker.io",
		Category:            domain.CategoryTech,
		TotalPC:             pool,
		PCValue:             value,
		RewardType:          domain.RewardCash,
		TargetMemberCount:   target,
		Deadline:            time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		SettlementCondition: domain.SettleRevenue,
		LegalProtections:    domain.LegalProtection{Signature: "Kim", SignedAt: time.Now()},
	}
	if err := db.CreateProject(p); err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}
	return p
}

// ─── Join ───────────────────────────────────────────────────────────────────

func TestJoin_IssuesPendingCredit(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)

	res, err := svc.Join(p.ID, "a@x.com", "Ana", "PR #42")
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if res.PCAmount != 100 {
		t.Errorf("PCAmount = %d, want 100", res.PCAmount)
	}
	if res.PCValue != 0.5 {
		t.Errorf("PCValue = %f, want 0.5", res.PCValue)
	}
	if res.Status != domain.CreditPending {
		t.Errorf("Status = %q, want pending", res.Status)
	}

	rows, err := db.CreditsByContributor("a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != domain.CreditPending {
		t.Errorf("ledger = %+v, want one pending row", rows)
	}
}

func TestJoin_FloorShare(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 10000, 3, 1.0)

	res, err := svc.Join(p.ID, "a@x.com", "Ana", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.PCAmount != 3333 {
		t.Errorf("PCAmount = %d, want floor 3333", res.PCAmount)
	}
}

func TestJoin_ZeroShareAllowed(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 5, 10, 1.0)

	res, err := svc.Join(p.ID, "a@x.com", "Ana", "")
	if err != nil {
		t.Fatalf("zero-credit issuance should be allowed, got %v", err)
	}
	if res.PCAmount != 0 {
		t.Errorf("PCAmount = %d, want 0", res.PCAmount)
	}
}

func TestJoin_MissingIdentity(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)

	tests := []struct{ email, name string }{
		{"", "Ana"},
		{"a@x.com", ""},
		{"  ", "Ana"},
	}
	for _, tt := range tests {
		if _, err := svc.Join(p.ID, tt.email, tt.name, ""); !errors.Is(err, domain.ErrMissingIdentity) {
			t.Errorf("Join(%q, %q) = %v, want ErrMissingIdentity", tt.email, tt.name, err)
		}
	}
}

func TestJoin_ProjectNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, PolicyApprovalGated)
	if _, err := svc.Join("nope", "a@x.com", "Ana", ""); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("Join(nope) = %v, want ErrProjectNotFound", err)
	}
}

func TestJoin_Duplicate(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)

	if _, err := svc.Join(p.ID, "a@x.com", "Ana", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Join(p.ID, "a@x.com", "Ana", ""); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("second join = %v, want ErrAlreadyJoined", err)
	}

	rows, _ := db.CreditsByContributor("a@x.com")
	if len(rows) != 1 {
		t.Errorf("ledger has %d rows, want exactly 1", len(rows))
	}
}

func TestJoin_ApprovalGated_NotifiesMakerAndDefersCount(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)

	if _, err := svc.Join(p.ID, "a@x.com", "Ana", ""); err != nil {
		t.Fatal(err)
	}

	if len(notifier.received) != 1 || notifier.received[0] != "kim@maker.io" {
		t.Errorf("maker notifications = %v, want one to kim@maker.io", notifier.received)
	}
	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 0 {
		t.Errorf("CurrentMemberCount = %d, want 0 until approval", proj.CurrentMemberCount)
	}
}

func TestJoin_NotifierFailureDoesNotFailJoin(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyApprovalGated)
	notifier.fail = true
	p := registerProject(t, db, 1000, 10, 0.5)

	if _, err := svc.Join(p.ID, "a@x.com", "Ana", ""); err != nil {
		t.Fatalf("Join() = %v, notifier failure must not surface", err)
	}
}

func TestJoin_DirectIssuance_CountsImmediately(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyDirectIssuance)
	p := registerProject(t, db, 1000, 10, 0.5)

	if _, err := svc.Join(p.ID, "a@x.com", "Ana", ""); err != nil {
		t.Fatal(err)
	}

	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 1 {
		t.Errorf("CurrentMemberCount = %d, want 1 on direct join", proj.CurrentMemberCount)
	}
	if len(notifier.received) != 0 {
		t.Errorf("direct issuance should not notify the maker, got %v", notifier.received)
	}
}

// ─── Decide ─────────────────────────────────────────────────────────────────

func TestDecide_Approve_ApprovalGated(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)

	res, err := svc.Join(p.ID, "a@x.com", "Ana", "")
	if err != nil {
		t.Fatal(err)
	}

	status, err := svc.Decide(res.CreditID, domain.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Decide(approve) error: %v", err)
	}
	if status != domain.CreditApproved {
		t.Errorf("status = %q, want approved", status)
	}

	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 1 {
		t.Errorf("CurrentMemberCount = %d, want 1 after approval", proj.CurrentMemberCount)
	}
	if len(notifier.approved) != 1 || notifier.approved[0].UserEmail != "a@x.com" {
		t.Errorf("approval notifications = %+v, want one to a@x.com", notifier.approved)
	}
}

func TestDecide_Approve_DirectIssuance_NoDoubleCount(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyDirectIssuance)
	p := registerProject(t, db, 1000, 10, 0.5)

	res, err := svc.Join(p.ID, "a@x.com", "Ana", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Decide(res.CreditID, domain.DecisionApprove, ""); err != nil {
		t.Fatal(err)
	}

	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 1 {
		t.Errorf("CurrentMemberCount = %d, want 1 (counted at join, not again)", proj.CurrentMemberCount)
	}
}

func TestDecide_RejectRequiresReason(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)
	res, _ := svc.Join(p.ID, "a@x.com", "Ana", "")

	if _, err := svc.Decide(res.CreditID, domain.DecisionReject, ""); !errors.Is(err, domain.ErrEmptyReason) {
		t.Fatalf("Decide(reject, \"\") = %v, want ErrEmptyReason", err)
	}

	status, err := svc.Decide(res.CreditID, domain.DecisionReject, "not eligible")
	if err != nil {
		t.Fatalf("Decide(reject, reason) error: %v", err)
	}
	if status != domain.CreditRejected {
		t.Errorf("status = %q, want rejected", status)
	}

	got, _ := db.GetCredit(res.CreditID)
	if got.RejectReason != "not eligible" {
		t.Errorf("RejectReason = %q, want verbatim 'not eligible'", got.RejectReason)
	}
}

func TestDecide_RejectNotifiesContributorWithReason(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)
	res, _ := svc.Join(p.ID, "a@x.com", "Ana", "")

	if _, err := svc.Decide(res.CreditID, domain.DecisionReject, "no proof"); err != nil {
		t.Fatal(err)
	}
	if len(notifier.rejected) != 1 || notifier.rejected[0].RejectReason != "no proof" {
		t.Errorf("reject notifications = %+v, want one carrying the reason", notifier.rejected)
	}

	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 0 {
		t.Errorf("CurrentMemberCount = %d, reject must not count a member", proj.CurrentMemberCount)
	}
}

func TestDecide_Terminal(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)
	res, _ := svc.Join(p.ID, "a@x.com", "Ana", "")

	if _, err := svc.Decide(res.CreditID, domain.DecisionApprove, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Decide(res.CreditID, domain.DecisionReject, "too late"); !errors.Is(err, domain.ErrAlreadyDecided) {
		t.Fatalf("second decision = %v, want ErrAlreadyDecided", err)
	}

	got, _ := db.GetCredit(res.CreditID)
	if got.Status != domain.CreditApproved {
		t.Errorf("Status = %q, want approved unchanged", got.Status)
	}
	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != 1 {
		t.Errorf("CurrentMemberCount = %d, want 1 (no double count)", proj.CurrentMemberCount)
	}
}

func TestDecide_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, PolicyApprovalGated)
	if _, err := svc.Decide("nope", domain.DecisionApprove, ""); !errors.Is(err, domain.ErrCreditNotFound) {
		t.Errorf("Decide(nope) = %v, want ErrCreditNotFound", err)
	}
}

func TestDecide_InvalidDecision(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 1000, 10, 0.5)
	res, _ := svc.Join(p.ID, "a@x.com", "Ana", "")

	if _, err := svc.Decide(res.CreditID, "defer", ""); !errors.Is(err, domain.ErrInvalidDecision) {
		t.Errorf("Decide(defer) = %v, want ErrInvalidDecision", err)
	}
}

func TestDecide_NotifierFailureDoesNotFailDecision(t *testing.T) {
	svc, db, notifier := newTestService(t, PolicyApprovalGated)
	notifier.fail = true
	p := registerProject(t, db, 1000, 10, 0.5)
	res, _ := svc.Join(p.ID, "a@x.com", "Ana", "")

	status, err := svc.Decide(res.CreditID, domain.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Decide() = %v, notifier failure must not surface", err)
	}
	if status != domain.CreditApproved {
		t.Errorf("status = %q, want approved", status)
	}
}

// ─── Member-Count Consistency ───────────────────────────────────────────────

func TestConcurrentJoinApproveCycles_CountMatchesTarget(t *testing.T) {
	svc, db, _ := newTestService(t, PolicyApprovalGated)
	p := registerProject(t, db, 500, 5, 1.0)

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("m%d@x.com", i)
			res, err := svc.Join(p.ID, email, "Member", "")
			if err != nil {
				t.Errorf("Join(%s) error: %v", email, err)
				return
			}
			if _, err := svc.Decide(res.CreditID, domain.DecisionApprove, ""); err != nil {
				t.Errorf("Decide(%s) error: %v", email, err)
			}
		}(i)
	}
	wg.Wait()

	proj, _ := db.GetProject(p.ID)
	if proj.CurrentMemberCount != n {
		t.Errorf("CurrentMemberCount = %d, want exactly %d", proj.CurrentMemberCount, n)
	}
}

// ─── Policy Parsing ─────────────────────────────────────────────────────────

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("approval"); err != nil || p != PolicyApprovalGated {
		t.Errorf("ParsePolicy(approval) = %v, %v", p, err)
	}
	if p, err := ParsePolicy("direct"); err != nil || p != PolicyDirectIssuance {
		t.Errorf("ParsePolicy(direct) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("hybrid"); err == nil {
		t.Error("ParsePolicy(hybrid) should fail")
	}
}
