package cmd

import (
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/largestproduct/internal/common/app"
	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	commonconfig "github.com/armadaproject/largestproduct/internal/common/config"
	"github.com/armadaproject/largestproduct/internal/common/logging"
	"github.com/armadaproject/largestproduct/internal/framework"
	"github.com/armadaproject/largestproduct/internal/framework/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/coordinator"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "largestproduct <master> [taskCount]",
		Short: "Finds the largest product of adjacent digits by farming work units out to agents",
		Long: `Listens for agents on <master> (host:port), partitions the input into work units and runs them on the
connected agents. taskCount limits the run to the first taskCount units. Set EXPLICIT_ACKNOWLEDGEMENTS to
acknowledge status updates only once they have been processed.`,
		Args: validateArgs,
		RunE: run,
	}
	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	return cmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(1, 2)(cmd, args); err != nil {
		return err
	}
	if len(args) == 2 {
		if _, err := parseTaskCount(args[1]); err != nil {
			return err
		}
	}
	return nil
}

func parseTaskCount(arg string) (int, error) {
	taskCount, err := strconv.Atoi(arg)
	if err != nil || taskCount < 1 {
		return 0, errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "taskCount",
			Value:   arg,
			Message: "must be a positive integer",
		})
	}
	return taskCount, nil
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

	taskCount := 0
	if len(args) == 2 {
		taskCount, _ = parseTaskCount(args[1])
	}
	application, err := framework.New(config, framework.Options{
		MasterAddress:            args[0],
		TaskCount:                taskCount,
		ExplicitAcknowledgements: framework.ExplicitAcknowledgementsFromEnv(),
	})
	if err != nil {
		var invalid *apperrors.ErrInvalidArgument
		if errors.As(err, &invalid) && invalid.Name == "totalUnits" {
			_ = cmd.Usage()
		}
		return err
	}

	ctx := app.CreateContextWithShutdown()
	_, err = application.Run(ctx)
	return err
}

func loadConfig(flags *pflag.FlagSet) (configuration.Configuration, error) {
	var config configuration.Configuration
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
