package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/integrations/siegeserver"
	"github.com/siegeai/schemaparser/listener"
	"github.com/siegeai/schemaparser/schema"
)

type listenOptions struct {
	device     string
	filter     string
	file       string
	server     string
	apikey     string
	interval   time.Duration
	valueLimit int
	out        string
}

func newListenCommand() *cobra.Command {
	opts := listenOptions{}
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Learn the schemas of JSON bodies in captured HTTP traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.device, "device", getEnv("SIEGE_DEVICE", "lo"), "network device to capture on")
	f.StringVar(&opts.filter, "filter", getEnv("SIEGE_FILTER", "tcp and port 80"), "bpf filter")
	f.StringVar(&opts.file, "file", getEnv("SIEGE_FILE", ""), "replay a pcap file instead of capturing live")
	f.StringVar(&opts.server, "server", getEnv("SIEGE_SERVER", "https://dashboard.siegeai.com"), "siege server url")
	f.StringVar(&opts.apikey, "apikey", getEnv("SIEGE_APIKEY", ""), "siege server api key; without one nothing is published")
	f.DurationVar(&opts.interval, "interval", time.Minute, "publish interval")
	f.IntVar(&opts.valueLimit, "value-limit", 100, "keep at most this many values per type (0 keeps all)")
	f.StringVar(&opts.out, "out", "", "write the final OpenAPI document here (default stdout when not publishing)")
	return cmd
}

func runListen(stdout io.Writer, opts listenOptions) error {
	var (
		source listener.PacketSource
		err    error
	)
	if opts.file != "" {
		source, err = listener.NewPacketSourceFile(opts.file, opts.filter)
	} else {
		source, err = listener.NewPacketSourceLive(opts.device, opts.filter)
	}
	if err != nil {
		slog.Error("could not init packet source", "err", err)
		return err
	}

	var client listener.Publisher
	if opts.apikey != "" {
		c, err := siegeserver.NewClient(opts.apikey, opts.server)
		if err != nil {
			slog.Error("could not init client", "err", err)
			return err
		}
		client = c
	} else {
		slog.Warn("no SIEGE_APIKEY, running without a server")
	}

	var parserOpts []schema.Option
	if opts.valueLimit > 0 {
		parserOpts = append(parserOpts, schema.WithValueLimit(opts.valueLimit))
	}
	config := listener.DefaultConfig()
	config.PublishInterval = opts.interval

	l, err := listener.NewListener(source, client, collection.NewRegistry(parserOpts...), config)
	if err != nil {
		slog.Error("could not init listener", "err", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := l.RegisterStartup(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = l.RegisterShutdown(shutdownCtx)
	}()

	wg := &sync.WaitGroup{}
	wg.Add(3)
	// Stop every job once the replay is exhausted.
	go func() {
		l.ListenJob(ctx, wg)
		cancel()
	}()
	go l.PublishJob(ctx, wg)
	go l.ReassembleJob(ctx, wg)

	slog.Info("listening", "device", opts.device, "file", opts.file, "filter", opts.filter)
	<-ctx.Done()
	wg.Wait()

	if opts.out == "" && client != nil {
		return nil
	}
	return writeDocument(stdout, l, opts.out)
}

func writeDocument(stdout io.Writer, l *listener.Listener, out string) error {
	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	doc, _ := l.Document()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("could not write document: %w", err)
	}
	return nil
}
