package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:           "schemaparser",
		Short:         "Infer probabilistic schemas from JSON and BSON documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(level)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", getEnv("SCHEMA_LOG", "info"), "log level (debug, info, warn, error)")

	root.AddCommand(newInferCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newListenCommand())
	root.AddCommand(newLoadCommand())
	return root
}

func setupLogging(level string) error {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(level))
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
	if err != nil {
		slog.Error("could not init logging", "err", err)
	}
	return err
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
