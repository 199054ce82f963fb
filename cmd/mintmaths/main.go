package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/mintmaths/internal/profile"
	"github.com/hrygo/mintmaths/internal/version"
)

const (
	defaultCatalog = "converted_questions.ods"
	envPrefix      = "mintmaths"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:           "mintmaths",
		Short:         "Generate randomised maths practice sets from past exam papers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd, v.GetString("mode"), v.GetString("log-level"))
			return nil
		},
	}

	registerPersistentFlags(rootCmd.PersistentFlags())
	bindConfig(v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newGenerateCmd(v),
		newRebuildCmd(v),
		newFacetsCmd(v),
		newCacheCmd(v),
		newVersionCmd(v),
	)
	return rootCmd
}

var persistentFlags = []string{"mode", "data", "driver", "dsn", "catalog", "source-root", "log-level"}

func registerPersistentFlags(flags *pflag.FlagSet) {
	flags.String("mode", "dev", `mode of the generator, can be "prod" or "dev"`)
	flags.String("data", ".", "data directory for the document store and question history")
	flags.String("driver", "", `persistent document store, "sqlite" or "postgres"; empty keeps documents in memory`)
	flags.String("dsn", "", "database source name")
	flags.String("catalog", defaultCatalog, "question spreadsheet (.xlsx, .ods or .csv)")
	flags.String("source-root", "", "directory question and solution PDFs are resolved against (default: catalog directory)")
	flags.String("log-level", "info", `log level, one of "debug", "info", "warn" or "error"`)
}

// bindConfig lets MINTMATHS_* environment variables stand in for unset flags.
func bindConfig(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetDefault("mode", "dev")
	v.SetDefault("data", ".")
	v.SetDefault("catalog", defaultCatalog)
	v.SetDefault("log-level", "info")

	for _, name := range persistentFlags {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// newProfile builds the profile from flags and MINTMATHS_* environment variables.
func newProfile(v *viper.Viper) (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:        v.GetString("mode"),
		Data:        v.GetString("data"),
		Driver:      v.GetString("driver"),
		DSN:         v.GetString("dsn"),
		CatalogPath: v.GetString("catalog"),
		SourceRoot:  v.GetString("source-root"),
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func setupLogger(cmd *cobra.Command, mode, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mintmaths %s\n", version.GetCurrentVersion(v.GetString("mode")))
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
