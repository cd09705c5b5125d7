package notification

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// namedNotifier labels a channel in logs.
type namedNotifier struct {
	name string
	Notifier
}

// Composite fans a summary out to every channel. A failing channel does not stop the others.
type Composite struct {
	notifiers []namedNotifier
}

// NewComposite creates an empty Composite.
func NewComposite() *Composite {
	return &Composite{}
}

// Add registers a channel under a name used in log lines.
func (c *Composite) Add(name string, n Notifier) *Composite {
	c.notifiers = append(c.notifiers, namedNotifier{name: name, Notifier: n})
	return c
}

// Len returns the number of registered channels.
func (c *Composite) Len() int {
	return len(c.notifiers)
}

// Notify implements Notifier. The returned error aggregates every channel failure.
func (c *Composite) Notify(ctx context.Context, s *Summary) error {
	var result *multierror.Error
	for _, n := range c.notifiers {
		if err := n.Notify(ctx, s); err != nil {
			logger.Errorf("Failed to send %s notification for batch %s: %v", n.name, s.Log.BatchID, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ Notifier = (*Composite)(nil)
