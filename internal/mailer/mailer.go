package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

// Config is the SMTP transport configuration. It usually comes from the
// mail settings row, so a fresh value is resolved per send.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Encryption  string // "none", "starttls", "ssl"
	FromAddress string
	FromName    string
}

// SettingsFunc resolves the current SMTP configuration. Admin edits to the
// mail settings take effect on the next send without a restart.
type SettingsFunc func(ctx context.Context) (Config, error)

// Client sends HTML email over SMTP, one recipient per message.
type Client struct {
	settings SettingsFunc
}

// New creates a client that resolves settings through the given func.
func New(settings SettingsFunc) *Client {
	return &Client{settings: settings}
}

// SendEmail delivers one message to one recipient. The encryption mode picks
// how the connection is secured: "ssl" dials implicit TLS, "starttls"
// upgrades a plain connection, "none" stays plaintext.
func (c *Client) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := c.settings(ctx)
	if err != nil {
		return fmt.Errorf("resolve mail settings: %w", err)
	}
	if cfg.Host == "" || cfg.FromAddress == "" {
		return fmt.Errorf("mail transport not configured")
	}

	msg := compose(cfg, to, subject, htmlBody)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	switch cfg.Encryption {
	case "ssl":
		return msg.SendWithTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
	case "starttls":
		return msg.SendWithStartTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
	default:
		return msg.Send(addr, auth)
	}
}

func compose(cfg Config, to, subject, htmlBody string) *email.Email {
	msg := email.NewEmail()
	msg.From = cfg.FromAddress
	if cfg.FromName != "" {
		msg.From = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	msg.To = []string{to}
	msg.Subject = subject
	msg.HTML = []byte(htmlBody)
	return msg
}
