// Package config holds the analyzer's configuration object and logging
// setup. Loading a configuration from a file is explicitly out of scope
// (spec.md §1); Config is a plain struct a caller fills in directly.
package config

import "os"

// Options are the recognized configuration options of spec.md §6.
type Options struct {
	// DumpPreprocessedIR, when non-empty, is a path to write the IR to
	// after preprocessing (fork duplication + guard markers).
	DumpPreprocessedIR string

	// PrintTrace emits a human-readable rendering of the program trace to
	// standard error.
	PrintTrace bool

	// ComputeCoverage also emits the ratio of analyzed source lines to
	// total source lines.
	ComputeCoverage bool

	// LogLevel controls the verbosity of the LogGroup built from this
	// Config.
	LogLevel LogLevel
}

// Config is the full configuration object passed to the analyzer.
type Config struct {
	Options
}

// NewDefaultConfig returns a Config with no dump path, no trace printing,
// no coverage computation, and warnings-and-errors-only logging.
func NewDefaultConfig() *Config {
	return &Config{Options{LogLevel: WarnLevel}}
}

// NewLogGroupFromConfig builds a *LogGroup at the level configured by c.
func NewLogGroupFromConfig(c *Config) *LogGroup {
	if c == nil {
		return NewLogGroup(WarnLevel)
	}
	return NewLogGroup(c.LogLevel)
}

// debugPTAEnv is the environment variable named in spec.md §6.
const debugPTAEnv = "DEBUG_PTA"

// DebugPTAEnabled reports whether the DEBUG_PTA environment flag is set
// to a value other than empty or "0". The pointer-analysis code does not
// consult it.
func DebugPTAEnabled() bool {
	v, ok := os.LookupEnv(debugPTAEnv)
	return ok && v != "" && v != "0"
}
