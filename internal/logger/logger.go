package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger from LOG_LEVEL and LOG_FORMAT.
// It is safe to call multiple times; later calls overwrite previous settings.
func Init() {
	log.SetOutput(os.Stdout)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// L returns the global logger for convenience.
func L() *log.Logger { return log.StandardLogger() }

// Reconciliation returns the sink used by the timeline and stale-tweet
// sweeps. Sweep output is reviewed separately from the general log, so it
// carries its own channel field.
func Reconciliation() *log.Entry {
	return log.StandardLogger().WithField("channel", "reconciliation")
}
