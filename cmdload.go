package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/siegeai/schemaparser/fake"
)

type loadOptions struct {
	server     string
	collection string
	requests   int
	batch      int
	workers    int
	seed       int64
}

func newLoadCommand() *cobra.Command {
	opts := loadOptions{}
	cmd := &cobra.Command{
		Use:    "load",
		Short:  "Post random documents to a running serve instance",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runLoad(ctx, http.DefaultClient, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "serve base url")
	f.StringVar(&opts.collection, "collection", "stress", "collection to post to")
	f.IntVar(&opts.requests, "requests", 100, "requests per worker")
	f.IntVar(&opts.batch, "batch", 10, "documents per request")
	f.IntVar(&opts.workers, "workers", 1, "concurrent workers")
	f.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	return cmd
}

func runLoad(ctx context.Context, client *http.Client, opts loadOptions) error {
	endpoint := fmt.Sprintf("%s/collections/%s/documents", opts.server, url.PathEscape(opts.collection))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		r := rand.New(rand.NewSource(opts.seed + int64(w)))
		go func() {
			defer wg.Done()
			buf := &bytes.Buffer{}
			for i := 0; i < opts.requests && ctx.Err() == nil; i++ {
				buf.Reset()
				if err := call(ctx, client, endpoint, r, opts.batch, buf); err != nil {
					mu.Lock()
					if first == nil {
						first = err
					}
					mu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()
	return first
}

func call(ctx context.Context, client *http.Client, endpoint string, r *rand.Rand, batch int, buf *bytes.Buffer) error {
	enc := json.NewEncoder(buf)
	for i := 0; i < batch; i++ {
		obj := fake.JSON(r)
		if err := enc.Encode(&obj); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected response: %s", res.Status)
	}
	slog.Debug("completed request", "url", endpoint, "documents", batch)
	return nil
}
