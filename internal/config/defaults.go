package config

const (
	defaultDataDir             = "~/.local/share/trustlabel"
	defaultLogDir              = "~/.local/share/trustlabel/logs"
	defaultAPIBind             = "127.0.0.1:7431"
	defaultAutoAssignStrategy  = "EXPERTISE_BASED"
	defaultEstimatedMinutes    = 60
	defaultSendBuffer          = 256
	defaultEventBuffer         = 128
	defaultPingIntervalSeconds = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: expandPath(defaultDataDir),
			LogDir:  expandPath(defaultLogDir),
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			AutoAssign:              true,
			AutoAssignStrategy:      defaultAutoAssignStrategy,
			DefaultEstimatedMinutes: defaultEstimatedMinutes,
		},
		Notifier: Notifier{
			SendBuffer:          defaultSendBuffer,
			EventBuffer:         defaultEventBuffer,
			PingIntervalSeconds: defaultPingIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
