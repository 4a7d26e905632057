// Package mailer sends discussion invitation emails over SMTP.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"

	"go.uber.org/zap"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppURL   string // base URL for join links
}

// Enabled reports whether an SMTP host is configured
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Invite is the data rendered into an invitation email
type Invite struct {
	RecipientName   string
	InviterName     string
	DiscussionTitle string
	InviteCode      string
	JoinURL         string
}

// Mailer handles sending emails
type Mailer struct {
	config Config
	log    *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Mailer instance
func New(cfg Config, log *zap.Logger) *Mailer {
	return &Mailer{config: cfg, log: log, send: smtp.SendMail}
}

// SendInvite tells a user they were added to a discussion
func (m *Mailer) SendInvite(toEmail string, inv Invite) error {
	if inv.JoinURL == "" && m.config.AppURL != "" && inv.InviteCode != "" {
		inv.JoinURL = fmt.Sprintf("%s/join/%s", m.config.AppURL, inv.InviteCode)
	}
	subject := fmt.Sprintf("AcademVault - %s invited you to %q", inv.InviterName, inv.DiscussionTitle)

	body, err := RenderInvite(inv)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return m.deliver(toEmail, subject, body)
}

// deliver sends an HTML email via SMTP
func (m *Mailer) deliver(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"utf-8\"",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg bytes.Buffer
	for _, k := range keys {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := m.send(addr, auth, m.config.From, []string{to}, msg.Bytes()); err != nil {
		m.log.Warn("failed to send email", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

var inviteTmpl = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#f4f6fb;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
    <div style="max-width:520px;margin:40px auto;background:#ffffff;border-radius:12px;overflow:hidden;border:1px solid #dfe3ee;">
        <div style="background:#1e3a8a;padding:28px;text-align:center;">
            <h1 style="color:#fff;margin:0;font-size:24px;font-weight:700;">AcademVault</h1>
            <p style="color:rgba(255,255,255,0.85);margin:8px 0 0;font-size:14px;">Discussion invitation</p>
        </div>

        <div style="padding:28px;">
            <p style="color:#1f2937;font-size:16px;line-height:1.6;margin:0 0 20px;">
                Hi <strong>{{.RecipientName}}</strong>,
            </p>
            <p style="color:#4b5563;font-size:14px;line-height:1.6;margin:0 0 20px;">
                {{.InviterName}} added you to <strong>{{.DiscussionTitle}}</strong>.
            </p>
            {{if .InviteCode}}
            <div style="background:#eef2ff;border:2px dashed #a5b4fc;border-radius:10px;padding:20px;text-align:center;margin:0 0 20px;">
                <span style="font-size:28px;font-weight:800;letter-spacing:6px;color:#3730a3;font-family:'Courier New',monospace;">{{.InviteCode}}</span>
            </div>
            {{end}}
            {{if .JoinURL}}
            <p style="text-align:center;margin:0 0 20px;">
                <a href="{{.JoinURL}}" style="background:#1e3a8a;color:#fff;padding:10px 22px;border-radius:6px;text-decoration:none;font-size:14px;">Open discussion</a>
            </p>
            {{end}}
        </div>

        <div style="padding:14px 28px;border-top:1px solid #e5e7eb;text-align:center;">
            <p style="color:#9ca3af;font-size:12px;margin:0;">You are receiving this because someone invited you on AcademVault.</p>
        </div>
    </div>
</body>
</html>`))

// RenderInvite returns the HTML body of an invitation email
func RenderInvite(inv Invite) (string, error) {
	var buf bytes.Buffer
	if err := inviteTmpl.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}
