package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/siegeai/schemaparser/apispec"
	"github.com/siegeai/schemaparser/infer"
	"github.com/siegeai/schemaparser/render"
	"github.com/siegeai/schemaparser/schema"
)

var errUnknownFormat = errors.New("unknown format")

type inferOptions struct {
	input      string
	format     string
	indent     string
	valueLimit int
	extended   bool
}

func newInferCommand() *cobra.Command {
	opts := inferOptions{}
	cmd := &cobra.Command{
		Use:   "infer [files...]",
		Short: "Print the schema of the documents in files, or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "input format: json, ndjson or bson (default: by file extension, json for stdin)")
	f.StringVarP(&opts.format, "format", "f", "json", "output format: json, yaml or openapi")
	f.StringVar(&opts.indent, "indent", "  ", "json indent")
	f.IntVar(&opts.valueLimit, "value-limit", 0, "keep at most this many values per type (0 keeps all)")
	f.BoolVar(&opts.extended, "extended-json", true, "interpret MongoDB Extended JSON wrappers")
	return cmd
}

func runInfer(stdin io.Reader, stdout io.Writer, files []string, opts inferOptions) error {
	var parserOpts []schema.Option
	if opts.valueLimit > 0 {
		parserOpts = append(parserOpts, schema.WithValueLimit(opts.valueLimit))
	}
	parser := schema.NewParser(parserOpts...)
	decoder := &infer.JSONDecoder{ExtendedJSON: opts.extended}

	if len(files) == 0 {
		format := opts.input
		if format == "" {
			format = "json"
		}
		if err := decode(decoder, parser, format, stdin); err != nil {
			return fmt.Errorf("stdin: %w", err)
		}
	}
	for _, name := range files {
		if err := decodeFile(decoder, parser, opts.input, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	parser.Finalize()
	slog.Debug("inferred schema", "documents", parser.Count(), "fields", len(parser.Fields()))

	switch opts.format {
	case "json":
		return render.JSON(stdout, parser, opts.indent)
	case "yaml":
		return render.YAML(stdout, parser)
	case "openapi":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", opts.indent)
		return enc.Encode(apispec.Schema(parser))
	}
	return fmt.Errorf("%w %q", errUnknownFormat, opts.format)
}

func decodeFile(decoder *infer.JSONDecoder, parser *schema.Parser, format, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if format == "" {
		format = formatOf(name)
	}
	return decode(decoder, parser, format, bufio.NewReader(f))
}

func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bson":
		return "bson"
	case ".ndjson", ".jsonl":
		return "ndjson"
	}
	return "json"
}

func decode(decoder *infer.JSONDecoder, parser *schema.Parser, format string, r io.Reader) error {
	observe := func(doc schema.Document) error {
		parser.Observe(doc)
		return nil
	}
	switch format {
	case "json":
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		docs, err := decoder.Documents(b)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			parser.Observe(doc)
		}
		return nil
	case "ndjson":
		return decoder.ParseNDJSON(r, observe)
	case "bson":
		return infer.ReadBSON(r, observe)
	}
	return fmt.Errorf("%w %q", errUnknownFormat, format)
}
