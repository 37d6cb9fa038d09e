package cmd

import (
	"path/filepath"

	"github.com/snaplink/snaplink/pkg/config"
	"github.com/snaplink/snaplink/pkg/logger"
	"github.com/snaplink/snaplink/pkg/runtime"
)

var (
	// Global flags
	FlagLogLevel     = 0
	FlagConfigFile   = "config.yaml"
	FlagConfigFolder = config.GetDefaultConfigDirectory("snaplink", "config.yaml")
	FlagLogFile      = "activity.log"
	FlagDryRun       bool

	initialized bool
)

// initCore sets up logging and loads the optional config file. Safe to call
// once per process, guarded by initialized at the call sites.
func initCore(showAppInfo bool) {
	logFilePath := ""
	if FlagLogFile != "" {
		logFilePath = FlagLogFile
		if !filepath.IsAbs(logFilePath) {
			logFilePath = filepath.Join(FlagConfigFolder, FlagLogFile)
		}
	}

	logger.Init(FlagLogLevel, logFilePath)

	log := logger.GetLogger("app")
	if showAppInfo {
		log.Infof("Using snaplink %s (commit: %s, built: %s)", runtime.Version, runtime.GitCommit, runtime.Timestamp)
	}

	if err := config.Init(filepath.Join(FlagConfigFolder, FlagConfigFile)); err != nil {
		log.WithError(err).Fatal("Failed loading configuration")
	}
}
