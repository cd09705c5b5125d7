package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// SMTPCredentials are the SMTP_* environment settings.
type SMTPCredentials struct {
	Address  string
	Port     string
	Login    string
	Password string
}

// SMTPCredentialsFromEnv reads SMTP_ADDRESS, SMTP_PORT, SMTP_SENDER_LOGIN and SMTP_SENDER_PASSWORD.
// A nil lookup reads the process environment.
func SMTPCredentialsFromEnv(lookup func(string) (string, bool)) (SMTPCredentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var creds SMTPCredentials
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"SMTP_ADDRESS", &creds.Address},
		{"SMTP_PORT", &creds.Port},
		{"SMTP_SENDER_LOGIN", &creds.Login},
		{"SMTP_SENDER_PASSWORD", &creds.Password},
	} {
		v, ok := lookup(f.key)
		if !ok || strings.TrimSpace(v) == "" {
			return SMTPCredentials{}, exception.NewConfigurationError(moduleName,
				fmt.Sprintf("Environment value can't be empty for %s: %s, please check `.env` or `.bashrc` file.", f.key, v), nil)
		}
		*f.dst = v
	}
	return creds, nil
}

// SMTPSender delivers mail through an SMTP relay that supports STARTTLS, authenticating with PLAIN.
type SMTPSender struct {
	Credentials func() (SMTPCredentials, error)
	Timeout     time.Duration
	// TLSConfig overrides the STARTTLS configuration; nil verifies the relay's host name.
	TLSConfig *tls.Config
}

// NewSMTPSender creates a sender that reads its credentials from the environment on every send.
func NewSMTPSender() *SMTPSender {
	return &SMTPSender{
		Credentials: func() (SMTPCredentials, error) { return SMTPCredentialsFromEnv(nil) },
		Timeout:     30 * time.Second,
	}
}

// From returns the sender login, which is also the envelope sender.
func (s *SMTPSender) From() string {
	creds, err := s.Credentials()
	if err != nil {
		return ""
	}
	return creds.Login
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	creds, err := s.Credentials()
	if err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = creds.Login
	}

	addr := net.JoinHostPort(creds.Address, creds.Port)
	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, creds.Address)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("SMTP server %s does not support STARTTLS", addr), nil)
	}
	tlsConfig := s.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: creds.Address, MinVersion: tls.VersionTLS12}
	}
	if err := c.StartTLS(tlsConfig); err != nil {
		return err
	}
	if err := c.Auth(smtp.PlainAuth("", creds.Login, creds.Password, creds.Address)); err != nil {
		return exception.NewConfigurationError(moduleName, "SMTP authentication failed", err)
	}
	if err := c.Mail(creds.Login); err != nil {
		return err
	}
	for _, rcpt := range msg.Recipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
