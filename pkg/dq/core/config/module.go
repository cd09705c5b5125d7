package config

import "go.uber.org/fx"

// NewRetryConfigProvider extracts *RetryConfig so retry wiring does not depend on the whole Config.
func NewRetryConfigProvider(cfg *Config) *RetryConfig {
	return &cfg.DQ.Retry
}

// NewNotificationConfigProvider extracts *NotificationConfig.
func NewNotificationConfigProvider(cfg *Config) *NotificationConfig {
	return &cfg.DQ.Notification
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(NewRetryConfigProvider),
	fx.Provide(NewNotificationConfigProvider),
)
