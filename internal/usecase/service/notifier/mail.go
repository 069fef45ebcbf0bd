package notifier

import (
	"context"
	"errors"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/usecase"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type MailConfig struct {
	Addr     string // host:port
	From     string
	To       string
	User     string
	Password string
}

// sendFunc совпадает с smtp.SendMail
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mail struct {
	cfg  MailConfig
	auth smtp.Auth
	send sendFunc
}

func NewMail(cfg MailConfig) (usecase.Notifier, error) {
	if cfg.Addr == "" || cfg.From == "" || cfg.To == "" {
		return nil, errors.New("smtp address, sender and recipient are required")
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", cfg.Addr, err)
	}

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host)
	}
	return &Mail{
		cfg:  cfg,
		auth: auth,
		send: smtp.SendMail,
	}, nil
}

func (m *Mail) message(comment *entity.Comment) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.From + "\r\n")
	b.WriteString("To: " + m.cfg.To + "\r\n")
	b.WriteString("Subject: " + Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(renderComment(comment), "\n", "\r\n"))
	return []byte(b.String())
}

func (m *Mail) NotifyNewComment(ctx context.Context, comment *entity.Comment) error {
	// net/smtp не принимает контекст, поэтому отправка идет в горутине, а ожидание ограничено ctx
	done := make(chan error, 1)
	go func() {
		done <- m.send(m.cfg.Addr, m.auth, m.cfg.From, []string{m.cfg.To}, m.message(comment))
	}()

	select {
	case <-ctx.Done():
		metrics.Notifications.WithLabelValues("mail", "timeout").Inc()
		return fmt.Errorf("send mail: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			metrics.Notifications.WithLabelValues("mail", "error").Inc()
			return fmt.Errorf("send mail: %w", err)
		}
	}
	metrics.Notifications.WithLabelValues("mail", "ok").Inc()
	return nil
}
