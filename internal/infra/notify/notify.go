// Package notify is the email collaborator invoked on workflow transitions.
// Delivery is best-effort by contract: the workflow logs failures and moves
// on, so nothing here may be load-bearing for ledger correctness.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustpledge/pledged/internal/domain"
)

const sendEndpoint = "https://api.sendgrid.com/v3/mail/send"

// Mailer delivers transition emails through the SendGrid v3 mail-send API.
// With no API key configured it degrades to a no-op that logs at debug.
type Mailer struct {
	apiKey   string
	from     string
	siteURL  string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewMailer builds a Mailer. An empty apiKey disables delivery.
func NewMailer(apiKey, from, siteURL string, logger *slog.Logger) *Mailer {
	if from == "" {
		from = "noreply@trustpledge.io"
	}
	return &Mailer{
		apiKey:   apiKey,
		from:     from,
		siteURL:  siteURL,
		endpoint: sendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// ContributionReceived tells the maker a new contribution request arrived.
func (m *Mailer) ContributionReceived(c domain.Credit, makerEmail string) error {
	proofLine := ""
	if c.Proof != "" {
		proofLine = fmt.Sprintf("<p><strong>Proof of contribution:</strong> %s</p>", c.Proof)
	}
	html := fmt.Sprintf(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h2>New contribution request</h2>
  <p>Hi <strong>%s</strong>,</p>
  <p><strong>%s</strong> has requested to contribute to <strong>%q</strong>.</p>
  %s
  <p><a href="%s/dashboard">Review it on your dashboard</a></p>
  <p style="color: #6b7280; font-size: 13px;">Please approve or reject within 48 hours.</p>
</div>`,
		c.MakerName, c.UserName, c.ProjectName, proofLine, m.siteURL)

	subject := fmt.Sprintf("[TrustPledge] New contribution request for %q", c.ProjectName)
	return m.send(makerEmail, c.MakerName, subject, html)
}

// ContributionApproved tells the contributor their pledge credits were issued.
func (m *Mailer) ContributionApproved(c domain.Credit) error {
	html := fmt.Sprintf(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h2>Pledge credits issued</h2>
  <p>Hi <strong>%s</strong>,</p>
  <p>The maker of <strong>%q</strong> approved your contribution.</p>
  <div style="background: #f0fdf4; border-radius: 8px; padding: 16px; margin: 16px 0;">
    <p style="margin: 0;"><strong>Credits issued:</strong> %d PC</p>
    <p style="margin: 8px 0 0;"><strong>Value per credit:</strong> %g</p>
    <p style="margin: 8px 0 0;"><strong>Settlement condition:</strong> %s</p>
  </div>
  <p><a href="%s/contributor">See your credits</a></p>
</div>`,
		c.UserName, c.ProjectName, c.PCAmount, c.PCValue, settlementLabel(c.SettlementCondition), m.siteURL)

	subject := fmt.Sprintf("[TrustPledge] %d pledge credits issued for %q", c.PCAmount, c.ProjectName)
	return m.send(c.UserEmail, c.UserName, subject, html)
}

// ContributionRejected tells the contributor their request was declined.
func (m *Mailer) ContributionRejected(c domain.Credit) error {
	html := fmt.Sprintf(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
  <h2>Contribution request declined</h2>
  <p>Hi <strong>%s</strong>,</p>
  <p>Your contribution request for <strong>%q</strong> was declined.</p>
  <div style="background: #fef2f2; border-radius: 8px; padding: 16px; margin: 16px 0;">
    <p style="margin: 0;"><strong>Reason:</strong> %s</p>
  </div>
  <p><a href="%s">Browse other projects</a></p>
</div>`,
		c.UserName, c.ProjectName, c.RejectReason, m.siteURL)

	subject := fmt.Sprintf("[TrustPledge] Decision on your contribution to %q", c.ProjectName)
	return m.send(c.UserEmail, c.UserName, subject, html)
}

// ─── SendGrid Wire Format ───────────────────────────────────────────────────

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailRequest struct {
	Personalizations []struct {
		To []address `json:"to"`
	} `json:"personalizations"`
	From    address `json:"from"`
	Subject string  `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func (m *Mailer) send(toEmail, toName, subject, html string) error {
	if m.apiKey == "" {
		m.logger.Debug("mail delivery disabled, skipping", "to", toEmail, "subject", subject)
		return nil
	}

	var req mailRequest
	req.Personalizations = make([]struct {
		To []address `json:"to"`
	}, 1)
	req.Personalizations[0].To = []address{{Email: toEmail, Name: toName}}
	req.From = address{Email: m.from}
	req.Subject = subject
	req.Content = []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{{Type: "text/html", Value: html}}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send mail: sendgrid returned %d", resp.StatusCode)
	}
	m.logger.Debug("mail delivered", "to", toEmail, "subject", subject)
	return nil
}

func settlementLabel(s domain.SettlementCondition) string {
	switch s {
	case domain.SettleRevenue:
		return "revenue target reached"
	case domain.SettleFunding:
		return "funding round closed"
	case domain.SettleMilestone:
		return "milestone reached"
	case domain.SettleExit:
		return "IPO / M&A"
	}
	return string(s)
}
