package config

import "time"

// Default configuration values.
const (
	DefaultLogLevel          = "info"
	DefaultEventBufferSize   = 1000
	DefaultScriptConcurrency = 4
	DefaultScriptTimeout     = 10 * time.Second
	DefaultAPIListen         = "0.0.0.0:8227"
	DefaultWebhookRetries    = 3
	DefaultWebhookTimeout    = 10 * time.Second
	DefaultWebhookBackoff    = 2 * time.Second
)
