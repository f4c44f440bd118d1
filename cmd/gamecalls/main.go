// Command gamecalls is the process entrypoint: load configuration, bring
// up structured logging, and hand off to the cobra command tree.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/cmd"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/conf"
	"github.com/Hunt-Master-Academy/hma-gamecalls-engine-sub002/internal/logging"
)

// configFlagValue scans argv for "--config <path>" ahead of cobra's own
// parsing: the config file has to be merged before RootCommand binds
// per-subcommand flag defaults to the settings it produces.
func configFlagValue(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	settings, err := conf.Load(configFlagValue(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamecalls: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init()
	if level, ok := parseLevel(settings.Log.Level); ok {
		logging.SetLevel(level)
	}

	rootCmd := cmd.RootCommand(settings)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file merged over the embedded defaults")

	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(name string) (slog.Level, bool) {
	switch name {
	case "trace":
		return logging.LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "fatal":
		return logging.LevelFatal, true
	default:
		return 0, false
	}
}
