package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
)

const subjectPrefix = "[mydumpkit]"

type emailNotifier struct {
	addr string
	host string
	from string
	to   []string
	auth smtp.Auth
}

// NewEmail builds an SMTP notifier. Credentials are optional but must be
// given together; without them mail is sent unauthenticated.
func NewEmail(d config.NotificationDetails) (Notifier, error) {
	host := strings.TrimSpace(d.SMTPHost)
	from := strings.TrimSpace(d.From)
	user := strings.TrimSpace(d.Username)
	pass := strings.TrimSpace(d.Password)

	var errs []error
	if host == "" {
		errs = append(errs, errors.New("config.smtp_host is required"))
	}
	if d.SMTPPort <= 0 {
		errs = append(errs, errors.New("config.smtp_port must be > 0"))
	}
	if from == "" {
		errs = append(errs, errors.New("config.from is required"))
	}
	to := splitRecipients(d.To)
	if len(to) == 0 {
		errs = append(errs, errors.New("config.to must include at least one recipient"))
	}
	if (user == "") != (pass == "") {
		errs = append(errs, errors.New("config.username and config.password must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	e := &emailNotifier{
		addr: net.JoinHostPort(host, strconv.Itoa(d.SMTPPort)),
		host: host,
		from: from,
		to:   to,
	}
	if user != "" {
		e.auth = smtp.PlainAuth("", user, pass, host)
	}
	return e, nil
}

func (e *emailNotifier) Notify(ctx context.Context, event Event) error {
	// net/smtp has no context support; at least skip sending once canceled
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(e.addr, e.auth, e.from, e.to, e.message(event)); err != nil {
		return fmt.Errorf("send mail via %s: %w", e.addr, err)
	}
	return nil
}

func (e *emailNotifier) message(event Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s %s: %s\r\n", subjectPrefix, event.Status, eventTarget(event))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(buildEmailBody(event))
	return []byte(b.String())
}

func buildEmailBody(event Event) string {
	var b strings.Builder
	b.WriteString("Dump event\n\n")
	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	field("run", event.RunID)
	field("db", eventTarget(event))
	field("status", event.Status)
	field("bytes", strconv.FormatInt(event.Bytes, 10))
	field("dest", event.Dest)
	field("duration", event.Duration)
	field("error", event.Error)
	return b.String()
}

func eventTarget(event Event) string {
	if event.DB == "" {
		return "all databases"
	}
	return event.DB
}

func splitRecipients(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
