package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker sends task failures to Sentry.
type Tracker struct {
	hub *sentry.Hub
}

// New initialises the Sentry client.
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError reports err with the given tags on a cloned hub.
func (t *Tracker) CaptureError(_ context.Context, err error, tags map[string]string) {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

// Flush waits up to timeout for buffered events.
func (t *Tracker) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
