package notify

import (
	"context"
	"errors"

	"github.com/nidhogg/holiday-agent/internal/task"
)

// Multi sends each completion to every notifier, even if one fails.
type Multi []task.Notifier

func (m Multi) Notify(ctx context.Context, t task.Task) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
