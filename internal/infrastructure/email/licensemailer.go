// Package email delivers license keys over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/gomail.v2"

	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/shared/config"
	"github.com/flaco-inc/flaco/internal/shared/services/markdown"
)

// ErrEmailDisabled is returned by the disabled notifier so callers record
// the license as undelivered.
var ErrEmailDisabled = errors.New("email delivery is disabled")

// Sender is the part of gomail.Dialer the mailer uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	ProductName string
	SupportURL  string
}

// SMTPConfigFrom maps the email config section.
func SMTPConfigFrom(cfg *config.EmailConfig) SMTPConfig {
	return SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		ProductName: cfg.ProductName,
		SupportURL:  cfg.SupportURL,
	}
}

type LicenseMailer struct {
	config   SMTPConfig
	sender   Sender
	markdown *markdown.Renderer
}

func NewLicenseMailer(cfg SMTPConfig) *LicenseMailer {
	return NewLicenseMailerWithSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func NewLicenseMailerWithSender(cfg SMTPConfig, sender Sender) *LicenseMailer {
	if cfg.ProductName == "" {
		cfg.ProductName = "Flaco"
	}
	return &LicenseMailer{
		config:   cfg,
		sender:   sender,
		markdown: markdown.NewRenderer(),
	}
}

// SendLicense mails the key. gomail has no context support, so a cancelled
// ctx only prevents the dial.
func (m *LicenseMailer) SendLicense(ctx context.Context, msg license.LicenseEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, plainBody, htmlBody, err := m.Compose(msg)
	if err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.config.FromAddress, m.config.FromName)
	gm.SetHeader("To", msg.Email)
	gm.SetHeader("Subject", subject)
	gm.SetBody("text/plain", plainBody)
	gm.AddAlternative("text/html", htmlBody)

	if err := m.sender.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send license email: %w", err)
	}
	return nil
}

// Compose renders the subject and both bodies. The plain part is the
// Markdown source itself.
func (m *LicenseMailer) Compose(msg license.LicenseEmail) (subject, plainBody, htmlBody string, err error) {
	tierName := cases.Title(language.English).String(string(msg.Tier))
	subject = fmt.Sprintf("Your %s %s license key", m.config.ProductName, tierName)

	var b strings.Builder
	fmt.Fprintf(&b, "# Your %s license\n\n", m.config.ProductName)
	fmt.Fprintf(&b, "Thanks for subscribing to **%s %s**.\n\n", m.config.ProductName, tierName)
	b.WriteString("Your license key:\n\n")
	fmt.Fprintf(&b, "`%s`\n\n", msg.LicenseKey)
	fmt.Fprintf(&b, "Registered email: %s\n", msg.Email)
	fmt.Fprintf(&b, "Valid until: %s\n\n", msg.ExpiresAt.UTC().Format("January 2, 2006"))
	fmt.Fprintf(&b, "To activate, open %s and enter the email address above together with this key.\n", m.config.ProductName)
	if m.config.SupportURL != "" {
		fmt.Fprintf(&b, "\nNeed help? [Contact support](%s)\n", m.config.SupportURL)
	}

	plainBody = b.String()
	htmlBody, err = m.markdown.Document(plainBody)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to render license email: %w", err)
	}
	return subject, plainBody, htmlBody, nil
}

// DisabledNotifier stands in when email.enabled is false.
type DisabledNotifier struct{}

func (DisabledNotifier) SendLicense(context.Context, license.LicenseEmail) error {
	return ErrEmailDisabled
}
