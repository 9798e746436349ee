package config

const (
	defaultStateDir           = "~/.local/share/inkwell/state"
	defaultLogDir             = "~/.local/share/inkwell/logs"
	defaultLogRetentionDays   = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultPollInterval       = 2
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 10
	defaultHeartbeatTimeout   = 120
	defaultStageTimeout       = 300
	defaultWorkers            = 4
	defaultMinQuality         = 60
	defaultMaxAttempts        = 3
	defaultSubScoreFloor      = 40
	defaultLengthTolerance    = 20
	defaultEventBufferSize    = 256
)

// BuiltinStageIDs lists the stage identifiers the engine ships wiring
// defaults for. Default() seeds a config entry for each so templates can
// reference them before any tool command is configured.
var BuiltinStageIDs = []string{"research", "write", "humanize", "edit", "seo", "publish"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	stages := make(map[string]Stage, len(BuiltinStageIDs))
	for _, id := range BuiltinStageIDs {
		stages[id] = Stage{}
	}
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			StageTimeout:       defaultStageTimeout,
			Workers:            defaultWorkers,
		},
		Gate: Gate{
			MinQuality:         defaultMinQuality,
			MaxAttempts:        defaultMaxAttempts,
			SubScoreFloor:      defaultSubScoreFloor,
			LengthTolerancePct: defaultLengthTolerance,
		},
		Stages: stages,
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Events: Events{
			BufferSize: defaultEventBufferSize,
			Archive:    true,
		},
	}
}
