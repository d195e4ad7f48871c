package main

import (
	"fmt"
	"os"
	"time"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (CJAN_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// setupLogging applies --verbose, --quiet and --no-color
func setupLogging() {
	util.SetLogLevel(util.LevelInfo)
	util.SetVerbose(GetConfigBool("verbose"))
	util.SetQuiet(GetConfigBool("quiet"))
	util.SetColors(!GetConfigBool("no_color") && util.IsTerminal(os.Stderr.Fd()))
}

// eventLevel is the minimum level written to the event log. An explicit
// event_level setting wins over --verbose/--quiet.
func eventLevel() report.EventLevel {
	if name := GetConfigString("event_level", ""); name != "" {
		return report.ParseLevel(name)
	}
	switch {
	case GetConfigBool("quiet"):
		return report.LevelWarning
	case GetConfigBool("verbose"):
		return report.LevelDebug
	}
	return report.LevelInfo
}

// openEventLog returns the run's event logger, or a null logger when event
// logging is disabled or the directory cannot be used
func openEventLog() *report.EventLogger {
	dir := GetConfigString("events", "")
	if dir == "" {
		return report.NullLogger()
	}

	logger, err := report.NewEventLogger(dir, eventLevel())
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", logger.Path())
	return logger
}

// networkMode decides network handling for a run from the paths it touches.
// --network (or network in the config) overrides detection.
func networkMode(paths ...string) *util.NetworkMode {
	var override *bool
	if viper.IsSet("network") {
		on := GetConfigBool("network")
		override = &on
	}
	return util.DetectNetworkMode(override, paths...)
}

// retryConfig retries file operations only in network mode
func retryConfig(mode *util.NetworkMode) *util.RetryConfig {
	return mode.RetryConfig(GetConfigInt("retries", 0), viper.GetDuration("retry_wait"))
}

// usageArgs validates the positional argument count, reporting a mismatch
// as a usage error. A negative max means no upper bound.
func usageArgs(min, max int) cobra.PositionalArgs {
	check := cobra.RangeArgs(min, max)
	if max < 0 {
		check = cobra.MinimumNArgs(min)
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%v: %w", err, util.ErrInvalidConfig)
		}
		return nil
	}
}

// trailingMock strips a final positional "mock", which requests a dry run
func trailingMock(args []string) ([]string, bool) {
	if n := len(args); n > 0 && args[n-1] == "mock" {
		return args[:n-1], true
	}
	return args, false
}

// openArchive resolves an archive argument
func openArchive(path string) (archive.Archive, error) {
	a, err := archive.Open(path)
	if err != nil {
		return archive.Archive{}, err
	}
	util.DebugLog("archive: %s", a.Root)
	return a, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
