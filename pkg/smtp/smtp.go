package smtp

import (
	"errors"
	"fmt"
	smtpPkg "net/smtp"
	"os"
	"strings"
)

var ErrNotConfigured = errors.New("smtp is not configured")

type ItfSmtp interface {
	SendMail(to, subject, body string) error
}

type smtp struct {
	auth smtpPkg.Auth
	mail string
	addr string
}

// New reads SMTP_MAIL, SMTP_PASSWORD, SMTP_HOST and SMTP_PORT. Host and port default to gmail.
func New() (ItfSmtp, error) {
	mail := os.Getenv("SMTP_MAIL")
	password := os.Getenv("SMTP_PASSWORD")
	if mail == "" || password == "" {
		return nil, ErrNotConfigured
	}

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}

	auth := smtpPkg.PlainAuth("", mail, password, host)

	return &smtp{auth: auth, mail: mail, addr: host + ":" + port}, nil
}

func (s *smtp) SendMail(to, subject, body string) error {
	return smtpPkg.SendMail(s.addr, s.auth, s.mail, []string{to}, buildMessage(s.mail, to, subject, body))
}

func buildMessage(from, to, subject, body string) []byte {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body))
}
