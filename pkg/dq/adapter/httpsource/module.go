package httpsource

import (
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
)

// NewClientProvider builds the client from the http_source section, reading secrets from the process environment.
func NewClientProvider(cfg *config.Config, executor *retry.Executor) *Client {
	hs := cfg.DQ.HTTPSource
	opts := Options{
		Timeout:            time.Duration(hs.TimeoutSeconds) * time.Second,
		RateLimitPerSecond: hs.RateLimitPerSecond,
		RateBurst:          hs.RateBurst,
		BreakerMaxFailures: hs.BreakerMaxFailures,
		BreakerOpenTimeout: time.Duration(hs.BreakerOpenSeconds) * time.Second,
	}
	return NewClient(opts, DefaultAuthenticators(os.LookupEnv), executor)
}

// Module provides the HTTP source as diagnose.APISource.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewClientProvider,
			fx.As(new(diagnose.APISource)),
		),
	),
)
