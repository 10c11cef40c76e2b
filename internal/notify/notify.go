// Package notify reports finished dumps and failed runs to webhooks and
// email recipients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is the notification payload shared by all notifier implementations.
// DB is empty for a combined single-stream dump or a failure before any
// database was reached.
type Event struct {
	RunID    string `json:"run_id"`
	DB       string `json:"db,omitempty"`
	Status   string `json:"status"`
	Bytes    int64  `json:"bytes"`
	Dest     string `json:"dest,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// trigger is the set of statuses a route fires on.
type trigger uint8

const (
	onSuccess trigger = 1 << iota
	onFailure
)

var errNoTrigger = errors.New("on must include success, failure, or both")

type route struct {
	on       trigger
	notifier Notifier
}

// Dispatcher fans an event out to every route subscribed to its status.
// A nil Dispatcher drops events.
type Dispatcher struct {
	routes []route
}

func NewDispatcher(cfgs []config.NotificationConfig) (*Dispatcher, error) {
	d := &Dispatcher{routes: make([]route, 0, len(cfgs))}
	for i, n := range cfgs {
		on, err := parseTrigger(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}
		nf, err := newNotifier(n)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}
		d.routes = append(d.routes, route{on: on, notifier: nf})
	}
	return d, nil
}

func newNotifier(n config.NotificationConfig) (Notifier, error) {
	kind := strings.ToLower(strings.TrimSpace(n.Type))
	var (
		nf  Notifier
		err error
	)
	switch kind {
	case "webhook":
		nf, err = NewWebhook(n.Config.URL, n.Config.Headers)
	case "email":
		nf, err = NewEmail(n.Config)
	default:
		return nil, fmt.Errorf("unsupported notification type %q", n.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return nf, nil
}

func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}

	want := statusTrigger(event.Status)
	var errs []error
	for i, r := range d.routes {
		if r.on&want == 0 {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification route %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func statusTrigger(status string) trigger {
	switch status {
	case StatusSuccess:
		return onSuccess
	case StatusFailure:
		return onFailure
	}
	return 0
}

func parseTrigger(raw []string) (trigger, error) {
	var on trigger
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "success":
			on |= onSuccess
		case "failure":
			on |= onFailure
		case "both":
			on |= onSuccess | onFailure
		default:
			return 0, fmt.Errorf("on contains unsupported value %q", v)
		}
	}
	if on == 0 {
		return 0, errNoTrigger
	}
	return on, nil
}
