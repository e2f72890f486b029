package cmd

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/largestproduct/internal/agent"
	"github.com/armadaproject/largestproduct/internal/agent/configuration"
	"github.com/armadaproject/largestproduct/internal/common/app"
	commonconfig "github.com/armadaproject/largestproduct/internal/common/config"
	"github.com/armadaproject/largestproduct/internal/common/logging"
	"github.com/armadaproject/largestproduct/internal/common/metrics"
	"github.com/armadaproject/largestproduct/internal/transport"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/agent"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent <master>",
		Short: "Evaluates work units launched by the largestproduct master at <master> (host:port)",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	config, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logging.ConfigureLogging(config.LogLevel)
	if err := logging.AddPrometheusHook(); err != nil {
		log.WithError(err).Warn("could not count log lines")
	}
	if config.MetricsPort != 0 {
		shutdownMetrics := metrics.ServeMetrics(config.MetricsPort)
		defer shutdownMetrics()
	}

	ctx := app.CreateContextWithShutdown()
	a := agent.New(args[0], config, transport.Execute)
	if err := a.Run(ctx); err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("agent stopped")
		return err
	}
	return nil
}

func loadConfig(flags *pflag.FlagSet) (configuration.AgentConfiguration, error) {
	var config configuration.AgentConfiguration
	userSpecifiedConfigs, err := flags.GetStringSlice(CustomConfigLocation)
	if err != nil {
		return config, errors.WithStack(err)
	}
	if _, err := commonconfig.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	err = commonconfig.Validate(config)
	if err != nil {
		commonconfig.LogValidationErrors(err)
	}
	return config, err
}
