package config

const (
	defaultConfigPath             = "~/.config/vidmentor/config.toml"
	defaultDataDir                = "~/.local/share/vidmentor"
	defaultLogDir                 = "~/.local/share/vidmentor/logs"
	defaultSocketName             = "vidmentor.sock"
	defaultPortSocketName         = "vidmentor-port.sock"
	defaultSettingsName           = "settings.db"
	defaultRetryAttempts          = 3
	defaultRetryBaseDelayMillis   = 250
	defaultPrimaryTimeoutSeconds  = 45
	defaultFallbackTimeoutSeconds = 15
	defaultDialTimeoutSeconds     = 2
	defaultIdleSuspendSeconds     = 30
	defaultKeepaliveSeconds       = 20
	defaultProviderBaseURL        = "https://generativelanguage.googleapis.com"
	defaultProviderTimeoutSeconds = 40
	defaultProviderRetryAttempts  = 3
	defaultProviderRetryBaseMs    = 500
	defaultProviderRetryMaxMs     = 4000
	defaultMonitorTickSeconds     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Transport: Transport{
			RetryAttempts:          defaultRetryAttempts,
			RetryBaseDelayMillis:   defaultRetryBaseDelayMillis,
			PrimaryTimeoutSeconds:  defaultPrimaryTimeoutSeconds,
			FallbackTimeoutSeconds: defaultFallbackTimeoutSeconds,
			DialTimeoutSeconds:     defaultDialTimeoutSeconds,
		},
		Runtime: Runtime{
			IdleSuspendSeconds: defaultIdleSuspendSeconds,
			KeepaliveSeconds:   defaultKeepaliveSeconds,
		},
		Provider: Provider{
			BaseURL:          defaultProviderBaseURL,
			TimeoutSeconds:   defaultProviderTimeoutSeconds,
			RetryMaxAttempts: defaultProviderRetryAttempts,
			RetryBaseMillis:  defaultProviderRetryBaseMs,
			RetryMaxMillis:   defaultProviderRetryMaxMs,
		},
		Monitor: Monitor{
			TickSeconds: defaultMonitorTickSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
