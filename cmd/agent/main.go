package main

import (
	"os"

	"github.com/armadaproject/largestproduct/cmd/agent/cmd"
	"github.com/armadaproject/largestproduct/internal/common/logging"
)

func main() {
	logging.ConfigureLogging("info")
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
