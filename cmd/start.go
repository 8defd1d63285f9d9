package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/runtime"
	"github.com/open-feature/assignd/pkg/service"
	"github.com/open-feature/assignd/pkg/store"
	"github.com/open-feature/assignd/pkg/sync"
	"github.com/open-feature/assignd/pkg/telemetry"
)

var (
	flagsPath       string
	banditsPath     string
	httpServicePort int32
	resyncSchedule  string
	metadataLabels  map[string]string
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start assignd",
	Long:  `Load the flag configuration, watch it for changes and serve evaluations over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := telemetry.NewMetrics(registry)
		if err != nil {
			return err
		}

		holder := store.NewHolder(nil)
		rt := runtime.Runtime{
			Holder: holder,
			Logger: log.WithField("component", "runtime"),
			Sync: &sync.FilePathSync{
				FlagsPath:   viper.GetString("flags"),
				BanditsPath: viper.GetString("bandits"),
				Resync:      viper.GetString("resync"),
				Logger:      log.WithField("component", "filepath-sync"),
			},
			Service: &service.HTTPService{
				HTTPServiceConfiguration: &service.HTTPServiceConfiguration{
					Port: viper.GetInt32("port"),
				},
				Holder:    holder,
				Evaluator: eval.NewEvaluator(eval.WithMetadata(viper.GetStringMapString("metadata"))),
				Metrics:   metrics,
				Gatherer:  registry,
				Logger:    log.WithField("component", "http-service"),
			},
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := rt.Start(ctx); err != nil {
			log.WithError(err).Error("assignd stopped")
			return err
		}
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&flagsPath, "flags", "f", "", "path to the universal flag configuration document")
	startCmd.Flags().StringVarP(&banditsPath, "bandits", "b", "", "path to the bandit models document")
	startCmd.Flags().Int32VarP(&httpServicePort, "port", "p", 8013, "port to listen on")
	startCmd.Flags().StringVarP(&resyncSchedule, "resync", "r", "", `cron schedule for forced reloads, e.g. "@every 1m"`)
	startCmd.Flags().StringToStringVar(&metadataLabels, "metadata", nil, "metadata attached to assignment and bandit events")
	for _, name := range []string{"flags", "bandits", "port", "resync", "metadata"} {
		_ = viper.BindPFlag(name, startCmd.Flags().Lookup(name))
	}
	rootCmd.AddCommand(startCmd)
}
