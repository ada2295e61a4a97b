package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/infer"
	"github.com/siegeai/schemaparser/schema"
	"github.com/siegeai/schemaparser/server"
)

func newServeCommand() *cobra.Command {
	var (
		addr       string
		valueLimit int
		maxBody    int64
		extended   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve named collections over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []schema.Option
			if valueLimit > 0 {
				opts = append(opts, schema.WithValueLimit(valueLimit))
			}
			srv := server.New(collection.NewRegistry(opts...),
				server.WithMaxBodyBytes(maxBody),
				server.WithDecoder(&infer.JSONDecoder{ExtendedJSON: extended}))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("serving", "addr", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", getEnv("SCHEMA_ADDR", ":8080"), "listen address")
	f.IntVar(&valueLimit, "value-limit", 1000, "keep at most this many values per type (0 keeps all)")
	f.Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "largest accepted request body in bytes")
	f.BoolVar(&extended, "extended-json", true, "interpret MongoDB Extended JSON wrappers")
	return cmd
}
