package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"sintonia/internal/config"
	"sintonia/internal/models"
)

// Service renders and sends workflow notifications
type Service struct {
	config *config.EmailConfig
	// transport delivers a rendered message; swapped in tests
	transport func(to, subject, body string) error
}

// NewService creates a new email service. Without an SMTP host messages are only logged.
func NewService(cfg *config.EmailConfig) *Service {
	s := &Service{config: cfg}
	if cfg.Enabled() {
		s.transport = s.sendEmail
	} else {
		slog.Warn("SMTP host not configured, emails will only be logged")
		s.transport = logOnly
	}
	return s
}

func logOnly(to, subject, _ string) error {
	slog.Info("Email not sent (SMTP disabled)", "to", to, "subject", subject)
	return nil
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 640px; margin: 0 auto; padding: 20px;">
        {{template "content" .}}
        {{if .Link}}
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #3b7a78; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">{{.LinkLabel}}</a>
        </div>
        {{end}}
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>`

var templates = map[string]*template.Template{
	"questionnaire_reviewed": mustParse(`{{define "content"}}
        <h2 style="color: #3b7a78;">Your questionnaire has been reviewed</h2>
        <p>Hello {{.Name}},</p>
        <p>Your <strong>{{.Questionnaire.TypeName}}</strong> questionnaire of {{date .Questionnaire.CompiledAt}} has been reviewed by your psychologist.</p>
{{end}}`),

	"invalidation_requested": mustParse(`{{define "content"}}
        <h2 style="color: #e67e22;">New invalidation request</h2>
        <p>Hello {{.Name}},</p>
        <p>A psychologist asked to invalidate questionnaire <strong>#{{.Request.QuestionnaireID}}</strong>.</p>
        <div style="background-color: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;">{{.Request.Notes}}</p>
        </div>
{{end}}`),

	"invalidation_decided": mustParse(`{{define "content"}}
        <h2 style="color: #3b7a78;">Invalidation request {{.Request.Status}}</h2>
        <p>Hello {{.Name}},</p>
        <p>Your request to invalidate questionnaire <strong>#{{.Request.QuestionnaireID}}</strong> has been <strong>{{.Request.Status}}</strong> by an administrator.</p>
{{end}}`),

	"alert_raised": mustParse(`{{define "content"}}
        <h2 style="color: #c0392b;">Score alert for {{.Alert.PatientName}}</h2>
        <p>Hello {{.Name}},</p>
        <div style="background-color: #f8d7da; border-left: 4px solid #dc3545; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Questionnaire:</strong> {{.Alert.TypeName}}</p>
            <p style="margin: 5px 0;"><strong>Score:</strong> {{.Alert.Score}} (threshold {{.Alert.Threshold}})</p>
        </div>
{{end}}`),

	"invalidation_digest": mustParse(`{{define "content"}}
        <h2 style="color: #e67e22;">{{len .Requests}} pending invalidation requests</h2>
        <p>Hello {{.Name}},</p>
        <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
            <thead>
                <tr style="background-color: #f5f5f5; border-bottom: 2px solid #ddd;">
                    <th style="padding: 8px; text-align: left;">Questionnaire</th>
                    <th style="padding: 8px; text-align: left;">Requested</th>
                    <th style="padding: 8px; text-align: left;">Notes</th>
                </tr>
            </thead>
            <tbody>
            {{range .Requests}}
                <tr style="border-bottom: 1px solid #eee;">
                    <td style="padding: 8px;">#{{.QuestionnaireID}}</td>
                    <td style="padding: 8px;">{{date .CreatedAt}}</td>
                    <td style="padding: 8px;">{{.Notes}}</td>
                </tr>
            {{end}}
            </tbody>
        </table>
{{end}}`),

	"alert_digest": mustParse(`{{define "content"}}
        <h2 style="color: #c0392b;">{{len .Alerts}} open score alerts</h2>
        <p>Hello {{.Name}},</p>
        <ul>
        {{range .Alerts}}
            <li>{{.PatientName}}: {{.TypeName}} score {{.Score}} (threshold {{.Threshold}}) since {{date .CreatedAt}}</li>
        {{end}}
        </ul>
{{end}}`),
}

func mustParse(content string) *template.Template {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2006-01-02") },
	}
	return template.Must(template.Must(template.New("layout").Funcs(funcs).Parse(layout)).Parse(content))
}

type message struct {
	Subject       string
	Name          string
	Link          string
	LinkLabel     string
	Questionnaire *models.Questionnaire
	Request       *models.InvalidationRequest
	Alert         *models.Alert
	Requests      []models.InvalidationRequest
	Alerts        []models.Alert
}

func (s *Service) render(name string, msg message) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func (s *Service) deliver(ctx context.Context, to, name string, msg message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		slog.Warn("Skipping email without recipient", "template", name)
		return nil
	}
	body, err := s.render(name, msg)
	if err != nil {
		return err
	}
	return s.transport(to, msg.Subject, body)
}

func (s *Service) link(path string) string {
	if s.config.FrontendURL == "" {
		return ""
	}
	return s.config.FrontendURL + path
}

// QuestionnaireReviewed tells a patient their questionnaire was reviewed
func (s *Service) QuestionnaireReviewed(ctx context.Context, patient *models.User, q *models.Questionnaire) error {
	return s.deliver(ctx, patient.Email, "questionnaire_reviewed", message{
		Subject:       "Your questionnaire has been reviewed",
		Name:          patient.FullName(),
		Link:          s.link(fmt.Sprintf("/questionnaires/%d", q.ID)),
		LinkLabel:     "Open questionnaire",
		Questionnaire: q,
	})
}

// InvalidationRequested tells every admin about a new pending request
func (s *Service) InvalidationRequested(ctx context.Context, admins []models.User, req *models.InvalidationRequest) error {
	sent := 0
	var lastErr error
	for _, admin := range admins {
		err := s.deliver(ctx, admin.Email, "invalidation_requested", message{
			Subject:   fmt.Sprintf("Invalidation requested for questionnaire #%d", req.QuestionnaireID),
			Name:      admin.FullName(),
			Link:      s.link(fmt.Sprintf("/admin/invalidation-requests/%d", req.ID)),
			LinkLabel: "Review request",
			Request:   req,
		})
		if err != nil {
			slog.Error("Failed to send invalidation request email", "admin_email", admin.Email, "error", err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// InvalidationDecided tells the requesting psychologist the outcome
func (s *Service) InvalidationDecided(ctx context.Context, psychologist *models.User, req *models.InvalidationRequest) error {
	return s.deliver(ctx, psychologist.Email, "invalidation_decided", message{
		Subject:   fmt.Sprintf("Invalidation request for questionnaire #%d %s", req.QuestionnaireID, req.Status),
		Name:      psychologist.FullName(),
		Link:      s.link(fmt.Sprintf("/invalidation-requests/%d", req.ID)),
		LinkLabel: "Open request",
		Request:   req,
	})
}

// AlertRaised tells a psychologist a patient's score crossed the alert threshold
func (s *Service) AlertRaised(ctx context.Context, psychologist *models.User, alert *models.Alert) error {
	return s.deliver(ctx, psychologist.Email, "alert_raised", message{
		Subject:   fmt.Sprintf("Score alert: %s", alert.TypeName),
		Name:      psychologist.FullName(),
		Link:      s.link("/alerts"),
		LinkLabel: "Open alerts",
		Alert:     alert,
	})
}

// PendingInvalidationDigest sends an admin the list of pending requests; empty lists are not sent
func (s *Service) PendingInvalidationDigest(ctx context.Context, admin *models.User, requests []models.InvalidationRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return s.deliver(ctx, admin.Email, "invalidation_digest", message{
		Subject:   fmt.Sprintf("Daily summary: %d pending invalidation requests", len(requests)),
		Name:      admin.FullName(),
		Link:      s.link("/admin/invalidation-requests?status=pending"),
		LinkLabel: "Open requests",
		Requests:  requests,
	})
}

// OpenAlertDigest sends a psychologist their open alerts; empty lists are not sent
func (s *Service) OpenAlertDigest(ctx context.Context, psychologist *models.User, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.deliver(ctx, psychologist.Email, "alert_digest", message{
		Subject:   fmt.Sprintf("Daily summary: %d open alerts", len(alerts)),
		Name:      psychologist.FullName(),
		Link:      s.link("/alerts?status=open"),
		LinkLabel: "Open alerts",
		Alerts:    alerts,
	})
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(to, subject, body string) error {
	var raw bytes.Buffer
	fmt.Fprintf(&raw, "From: %s\r\n", s.config.SMTPFrom)
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// Development servers such as Mailpit need no authentication
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(raw.Bytes()); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return client.Quit()
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
