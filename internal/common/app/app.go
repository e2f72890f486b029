package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/largestproduct/internal/common/runcontext"
)

// CreateContextWithShutdown returns a context, logging through the standard logger, that is cancelled on the first
// SIGINT or SIGTERM.
func CreateContextWithShutdown() *runcontext.Context {
	return contextCancelledOn(syscall.SIGINT, syscall.SIGTERM)
}

func contextCancelledOn(signals ...os.Signal) *runcontext.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return runcontext.New(ctx, log.NewEntry(log.StandardLogger()))
}
