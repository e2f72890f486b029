package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

// ConfigureLogging sets up the standard logrus logger the way every binary in this repo logs: full timestamps on
// stdout at the given level. An unparseable level falls back to info and is reported.
func ConfigureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithError(err).Warnf("unknown log level %q, using info", level)
		return
	}
	log.SetLevel(parsed)
}

// AddPrometheusHook counts log lines per level on the default prometheus registry.
func AddPrometheusHook() error {
	hook, err := promrus.NewPrometheusHook()
	if err != nil {
		return err
	}
	log.AddHook(hook)
	return nil
}
