package notify

import (
	"context"
	"fmt"
	"regexp"

	"gopkg.in/gomail.v2"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailChannel delivers the HTML rendering over SMTP.
type EmailChannel struct {
	cfg *config.Config
}

func NewEmailChannel(cfg *config.Config) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (e *EmailChannel) Name() string {
	return "email"
}

func (e *EmailChannel) Send(ctx context.Context, student *model.Student, msg Message) error {
	if student.Email == "" {
		return fmt.Errorf("no email address for %s: %w", student.RegNo, errors.ErrInvalidEmail)
	}
	if !emailPattern.MatchString(student.Email) {
		return fmt.Errorf("malformed email %q: %w", student.Email, errors.ErrInvalidEmail)
	}

	smtp := e.cfg.Notify.SMTP

	from := smtp.From
	if from == "" {
		from = smtp.Username
	}

	mailer := gomail.NewMessage()
	mailer.SetHeader("From", from)
	mailer.SetHeader("To", student.Email)
	mailer.SetHeader("Subject", msg.Subject)
	mailer.SetBody("text/html", msg.HTML)

	dialer := gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)

	// gomail has no context support; honor cancellation around the dial.
	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(mailer)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", student.Email, err)
		}
		return nil
	}
}
