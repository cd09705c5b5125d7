package notification

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// NotifierParams defines the dependencies for NewNotifierProvider.
type NotifierParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.NotificationConfig
	Executor  *retry.Executor
}

// NewNotifierProvider assembles the enabled channels into one Notifier.
// Channels are notified in order: email, Teams, AMQP.
func NewNotifierProvider(p NotifierParams) Notifier {
	composite := NewComposite()
	cfg := p.Config

	if cfg.Email.Enabled {
		composite.Add("email", NewEmailNotifier(NewSMTPSender(), "", p.Executor))
	}
	if cfg.Teams.Enabled {
		composite.Add("teams", NewTeamsNotifier(nil, nil, p.Executor))
	}
	if cfg.AMQP.Enabled {
		publisher := NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey, nil, p.Executor)
		composite.Add("amqp", publisher)
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return publisher.Close()
			},
		})
	}

	logger.Debugf("Notification: %d channel(s) enabled.", composite.Len())
	return composite
}

// Module provides the job completion Notifier.
var Module = fx.Options(
	fx.Provide(NewNotifierProvider),
)
