package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/global-data-controller/emuseed/internal/bootstrap"
	"github.com/global-data-controller/emuseed/internal/config"
	"github.com/global-data-controller/emuseed/internal/fixtures"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	v          *viper.Viper
	configFile string
}

// flagKeys maps persistent flags to configuration keys
var flagKeys = map[string]string{
	"project":     "project_id",
	"fixtures":    "fixtures.path",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"on-conflict": "seed.on_conflict",
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "emuseed",
		Short: "Seed local Google Cloud emulators with sample schemas and data",
		Long: `emuseed creates sample tables, entities, documents, topics and databases in the
Bigtable, Datastore, Firestore, Pub/Sub and Spanner emulators, and optionally in YDB.

Emulator endpoints are read from the usual *_EMULATOR_HOST variables, from
EMUSEED_* variables, or from an emuseed.yaml configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "path to configuration file")
	flags.String("project", "", "Google Cloud project id (default test-project)")
	flags.String("fixtures", "", "fixture file replacing the built-in sample data")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("on-conflict", "", "what to do with objects that already exist: skip or fail")

	if err := bindFlags(a.v, flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "all",
			Short: "Run every enabled seeder in the configured order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.seed(cmd.Context(), false)
			},
		},
		a.seederCommand(config.Bigtable, "Create the sample Bigtable tables"),
		a.seederCommand(config.Datastore, "Write the sample Datastore entities"),
		a.seederCommand(config.Firestore, "Add the sample Firestore documents"),
		a.seederCommand(config.PubSub, "Create the sample Pub/Sub topics"),
		a.seederCommand(config.Spanner, "Create the Spanner instance, database and sample rows"),
		a.seederCommand(config.YDB, "Create the YDB tables and sample rows"),
		a.fixturesCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "emuseed %s\n", version)
			},
		},
	)

	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) seederCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.seed(cmd.Context(), true, name)
		},
	}
}

// seed runs the named seeders. With strict set any failed seeder is an error;
// otherwise only required seeders are.
func (a *app) seed(ctx context.Context, strict bool, names ...string) error {
	bs := bootstrap.New()
	if err := bs.InitializeWith(ctx, a.v, a.configFile); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = bs.Stop(stopCtx)
	}()

	report, err := bs.Run(ctx, names...)
	if err != nil {
		return err
	}

	if !report.Succeeded() {
		failed := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			failed = append(failed, f.Seeder)
		}
		if strict {
			return fmt.Errorf("seeding failed: %s", strings.Join(failed, ", "))
		}
		bs.Logger.Warn(ctx, "Some seeders failed", zap.Strings("seeders", failed))
	}
	return nil
}

func (a *app) fixturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures",
		Short: "Print the effective fixtures as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(a.v, a.configFile)
			if err != nil {
				return err
			}

			f, err := fixtures.Load(cfg.Fixtures.Path)
			if err != nil {
				return err
			}

			out, err := f.Marshal()
			if err != nil {
				return fmt.Errorf("failed to encode fixtures: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
