// finding_due_notifier.go implements the FindingDueNotifier background job,
// which periodically scans for open inspection findings approaching their due
// date and emails the inspector who raised them. The job is a no-op when
// notifications.enabled is false or when the SMTP host is not configured, so
// it is always safe to start regardless of deployment environment.
//
// Sent state is tracked in memory, keyed by finding ID. A restart re-sends
// pending warnings once; duplicated reminders were judged acceptable against
// carrying a notification column on findings.
package jobs

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/store"
	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

// FindingDueNotifier periodically emails inspectors whose findings are coming due.
type FindingDueNotifier struct {
	store    store.Store
	cfg      *config.NotificationsConfig
	interval time.Duration
	stopChan chan struct{}

	mu       sync.Mutex
	notified map[string]struct{}
}

// NewFindingDueNotifier creates a new FindingDueNotifier. The check interval
// comes from notifications.finding_due_check_interval_hours (default 24h).
func NewFindingDueNotifier(st store.Store, cfg *config.NotificationsConfig) *FindingDueNotifier {
	hours := cfg.FindingDueCheckIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return &FindingDueNotifier{
		store:    st,
		cfg:      cfg,
		interval: time.Duration(hours) * time.Hour,
		stopChan: make(chan struct{}),
		notified: make(map[string]struct{}),
	}
}

// Start begins the background due-date loop. It runs an initial check
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (n *FindingDueNotifier) Start(ctx context.Context) {
	if !n.cfg.Enabled {
		slog.Info("finding due notifier disabled", "reason", "notifications.enabled=false")
		return
	}
	if n.cfg.SMTP.Host == "" {
		slog.Info("finding due notifier disabled", "reason", "notifications.smtp.host not set")
		return
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("finding due notifier started",
		"interval", n.interval,
		"warning_days", n.warningDays())

	n.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			n.runCheck(ctx)
		case <-n.stopChan:
			slog.Info("finding due notifier stopped")
			return
		case <-ctx.Done():
			slog.Info("finding due notifier context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (n *FindingDueNotifier) Stop() {
	close(n.stopChan)
}

func (n *FindingDueNotifier) warningDays() int {
	if n.cfg.FindingDueWarningDays > 0 {
		return n.cfg.FindingDueWarningDays
	}
	return 7
}

// runCheck queries for due findings and sends warning emails.
func (n *FindingDueNotifier) runCheck(ctx context.Context) {
	due, err := n.store.FindingsDueWithin(ctx, n.warningDays())
	if err != nil {
		slog.Error("finding due notifier: query failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	slog.Info("finding due notifier: findings approaching due date", "count", len(due))

	for _, d := range due {
		finding := &d.Finding

		n.mu.Lock()
		_, already := n.notified[finding.ID]
		n.mu.Unlock()
		if already {
			continue
		}

		if finding.DueAt == nil || finding.InspectorID == nil || *finding.InspectorID == "" {
			continue
		}
		inspector, err := n.store.GetUserByUsername(ctx, *finding.InspectorID)
		if err != nil {
			slog.Error("finding due notifier: could not resolve inspector",
				"inspector", *finding.InspectorID, "finding_id", finding.ID, "error", err)
			continue
		}
		if inspector == nil || inspector.Email == "" {
			continue
		}

		if err := n.sendDueEmail(inspector.Email, inspector.Username,
			finding.Title, d.InstitutionName, *finding.DueAt); err != nil {
			slog.Error("finding due notifier: send failed",
				"to", inspector.Email, "finding_id", finding.ID, "error", err)
			continue
		}
		telemetry.FindingDueNotificationsSentTotal.Inc()

		n.mu.Lock()
		n.notified[finding.ID] = struct{}{}
		n.mu.Unlock()
	}
}

// sendDueEmail composes and delivers a plain-text warning email via SMTP.
func (n *FindingDueNotifier) sendDueEmail(toEmail, username, title, institution string, dueAt time.Time) error {
	daysLeft := int(time.Until(dueAt).Hours()/24) + 1
	if daysLeft < 0 {
		daysLeft = 0
	}

	subject := fmt.Sprintf("Action Required: finding '%s' is due in %d day(s)", title, daysLeft)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", username),
		"",
		fmt.Sprintf("The inspection finding '%s' raised against %s is due on %s (%d day(s) from now).",
			title, institution, dueAt.UTC().Format(time.RFC1123), daysLeft),
		"",
		"Please update the finding before its due date:",
		"  1. Log in to the supervision portal.",
		"  2. Open Inspections and locate the finding.",
		"  3. Record the remediation outcome and move the finding to Closed,",
		"     or extend the due date with a justification.",
		"",
		"Findings past their due date are reported as overdue on the supervision dashboard.",
		"",
		"— Supervision Portal",
	}, "\r\n")

	smtpCfg := &n.cfg.SMTP
	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		smtpCfg.From, toEmail, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)
	auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)

	if smtpCfg.UseTLS {
		return sendMailTLS(addr, smtpCfg.Host, auth, smtpCfg.From, []string{toEmail}, msg)
	}
	return smtp.SendMail(addr, auth, smtpCfg.From, []string{toEmail}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
// For port 587 STARTTLS, smtp.SendMail handles the upgrade automatically; this
// path is used whenever UseTLS=true so the config stays unambiguous: UseTLS
// always means an encrypted connection.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to STARTTLS via the standard smtp.SendMail path.
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
