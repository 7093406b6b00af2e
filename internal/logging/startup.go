package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects service identity, configuration, resources, and
// feature flags, then emits a single structured zerolog event summarising
// the startup state. This makes it easy to understand exactly how a
// process was configured when troubleshooting from aggregated logs.
type StartupLogger struct {
	name         string
	commitHash   string
	initDuration time.Duration

	buckets  map[string]string
	queues   map[string]string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given process name
// (e.g. "api", "worker").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		buckets:  make(map[string]string),
		queues:   make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// Bucket registers an object-storage bucket used by this process.
func (s *StartupLogger) Bucket(label, name string) *StartupLogger {
	s.buckets[label] = name
	return s
}

// Queue registers a task queue consumed or produced by this process.
func (s *StartupLogger) Queue(label, name string) *StartupLogger {
	s.queues[label] = name
	return s
}

// Feature registers a boolean feature flag (e.g. "dryRun", "preservationEnforce").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
// Never register secrets or tokens here.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long process initialization took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	processDict := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("VAK_LOG_LEVEL"))

	if s.commitHash != "" {
		processDict = processDict.Str("commitHash", s.commitHash)
	}

	evt = evt.Dict("process", processDict)

	if len(s.buckets) > 0 {
		evt = evt.Dict("buckets", dictFromMap(s.buckets))
	}
	if len(s.queues) > 0 {
		evt = evt.Dict("queues", dictFromMap(s.queues))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
