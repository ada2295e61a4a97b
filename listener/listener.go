// Package listener learns the schemas of JSON bodies from live HTTP
// traffic and publishes them as an OpenAPI document.
package listener

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/siegeai/schemaparser/apispec"
	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/httpassembly"
	"github.com/siegeai/schemaparser/infer"
	"github.com/siegeai/schemaparser/integrations/siegeserver"
	"github.com/siegeai/schemaparser/metrics"
	"github.com/siegeai/schemaparser/render"
)

// Publisher is the part of the siege server client the listener needs.
type Publisher interface {
	Startup(ctx context.Context) (*siegeserver.ListenerConfig, error)
	Shutdown(ctx context.Context, listenerID string) error
	Update(ctx context.Context, args siegeserver.ListenerUpdate) error
}

var _ Publisher = (*siegeserver.Client)(nil)

type Config struct {
	Title           string
	Version         string
	PublishInterval time.Duration
	FlushInterval   time.Duration
	FlushAge        time.Duration
	QueueSize       int
}

func DefaultConfig() Config {
	return Config{
		Title:           "Observed API",
		Version:         "0.0.1",
		PublishInterval: time.Minute,
		FlushInterval:   30 * time.Second,
		FlushAge:        2 * time.Minute,
		QueueSize:       1024,
	}
}

// Listener owns one registry of collections, one per request or response
// body shape: "<METHOD> <path> request" and "<METHOD> <path> response
// <status>", with paths templated.
type Listener struct {
	source    PacketSource
	client    Publisher
	config    Config
	registry  *collection.Registry
	decoder   *infer.JSONDecoder
	exchanges chan exchange

	listenerID string

	mu  sync.Mutex
	ops map[string]*operation
}

type exchange struct {
	method  string
	path    string
	status  int
	reqType string
	resType string
	reqBody []byte
	resBody []byte
}

type operation struct {
	method    string
	path      string
	params    openapi3.Parameters
	request   string
	responses map[int]string
}

// NewListener wires a packet source to a publisher. client may be nil, in
// which case nothing is published and Document is the only output.
func NewListener(source PacketSource, client Publisher, registry *collection.Registry, config Config) (*Listener, error) {
	if registry == nil {
		return nil, fmt.Errorf("listener: nil registry")
	}
	def := DefaultConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.PublishInterval <= 0 {
		config.PublishInterval = def.PublishInterval
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.FlushAge <= 0 {
		config.FlushAge = def.FlushAge
	}
	if config.Title == "" {
		config.Title = def.Title
	}
	if config.Version == "" {
		config.Version = def.Version
	}
	return &Listener{
		source:    source,
		client:    client,
		config:    config,
		registry:  registry,
		decoder:   infer.NewJSONDecoder(),
		exchanges: make(chan exchange, config.QueueSize),
		ops:       make(map[string]*operation),
	}, nil
}

func (l *Listener) RegisterStartup(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	cfg, err := l.client.Startup(ctx)
	if err != nil {
		slog.Error("could not register startup", "err", err)
		return err
	}
	l.listenerID = cfg.ListenerID
	slog.Info("registered startup", "listenerID", l.listenerID)
	return nil
}

func (l *Listener) RegisterShutdown(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	if err := l.client.Shutdown(ctx, l.listenerID); err != nil {
		slog.Error("could not register shutdown", "err", err)
		return err
	}
	slog.Info("registered shutdown", "listenerID", l.listenerID)
	return nil
}

type factory struct {
	l *Listener
}

func (f *factory) New() httpassembly.HttpStream {
	return &stream{l: f.l}
}

type stream struct {
	l *Listener
}

func (s *stream) ReassembledRequestResponse(req *http.Request, res *http.Response) {
	s.l.enqueue(req, res)
}

// ListenJob feeds packets to the assembler until ctx is done or the source
// runs dry. It also flushes idle streams, since the assembler may only be
// touched from one goroutine.
func (l *Listener) ListenJob(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(l.exchanges)

	assembler := httpassembly.NewAssembler(&factory{l: l})
	packets := l.source.Packets()
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case packet, ok := <-packets:
			if !ok {
				assembler.FlushOlderThan(time.Now())
				slog.Info("packet source exhausted")
				return
			}
			assembler.Assemble(packet)
		case <-ticker.C:
			flushed, closed := assembler.FlushOlderThan(time.Now().Add(-l.config.FlushAge))
			slog.Debug("flushed streams", "flushed", flushed, "closed", closed)
		}
	}
}

func (l *Listener) enqueue(req *http.Request, res *http.Response) {
	reqBody, reqErr := readAllEncoded(req.Header.Get("Content-Encoding"), req.Body)
	resBody, resErr := readAllEncoded(res.Header.Get("Content-Encoding"), res.Body)
	if reqErr != nil || resErr != nil {
		slog.Debug("could not read bodies", "reqErr", reqErr, "resErr", resErr)
	}

	ex := exchange{
		method:  req.Method,
		path:    req.URL.Path,
		status:  res.StatusCode,
		reqType: req.Header.Get("Content-Type"),
		resType: res.Header.Get("Content-Type"),
		reqBody: reqBody,
		resBody: resBody,
	}
	select {
	case l.exchanges <- ex:
		metrics.Exchanges.WithLabelValues("queued").Inc()
	default:
		metrics.Exchanges.WithLabelValues("dropped").Inc()
		slog.Warn("exchange queue full, dropping", "method", ex.method, "path", ex.path)
	}
}

// ReassembleJob folds reassembled exchanges into collections until the
// listen job stops.
func (l *Listener) ReassembleJob(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for ex := range l.exchanges {
		l.observe(ex)
	}
}

func (l *Listener) observe(ex exchange) {
	slog.Debug("handling", "method", ex.method, "path", ex.path, "status", ex.status)
	if 500 <= ex.status && ex.status < 600 {
		metrics.Exchanges.WithLabelValues("server_error").Inc()
		return
	}

	path, params := apispec.TemplatePath(ex.path)
	key := ex.method + " " + path

	l.mu.Lock()
	op, ok := l.ops[key]
	if !ok {
		op = &operation{
			method:    ex.method,
			path:      path,
			params:    params,
			responses: make(map[int]string),
		}
		l.ops[key] = op
	}
	reqName := ""
	if ex.status != http.StatusBadRequest && len(bytes.TrimSpace(ex.reqBody)) > 0 && isJSON(ex.reqType) {
		reqName = key + " request"
		op.request = reqName
	}
	resName := ""
	if len(bytes.TrimSpace(ex.resBody)) > 0 && isJSON(ex.resType) {
		resName = fmt.Sprintf("%s response %d", key, ex.status)
	}
	if _, seen := op.responses[ex.status]; !seen || resName != "" {
		op.responses[ex.status] = resName
	}
	l.mu.Unlock()

	if reqName != "" {
		l.observeBody(reqName, ex.reqBody)
	}
	if resName != "" {
		l.observeBody(resName, ex.resBody)
	}
	metrics.Exchanges.WithLabelValues("observed").Inc()
}

func (l *Listener) observeBody(name string, body []byte) {
	docs, err := l.decoder.Documents(body)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues("json").Inc()
		slog.Debug("could not decode body", "collection", name, "err", err)
		return
	}
	l.registry.GetOrCreate(name).Observe(docs...)
}

// Document assembles the OpenAPI description of everything observed so far.
func (l *Listener) Document() (*openapi3.T, map[string]*render.Schema) {
	l.mu.Lock()
	ops := make([]*operation, 0, len(l.ops))
	for _, op := range l.ops {
		ops = append(ops, &operation{
			method:    op.method,
			path:      op.path,
			params:    op.params,
			request:   op.request,
			responses: copyResponses(op.responses),
		})
	}
	l.mu.Unlock()
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].path != ops[j].path {
			return ops[i].path < ops[j].path
		}
		return ops[i].method < ops[j].method
	})

	schemas := make(map[string]*render.Schema)
	snapshot := func(name string) *openapi3.Schema {
		if name == "" {
			return nil
		}
		c, err := l.registry.Get(name)
		if err != nil {
			return nil
		}
		snap := c.Snapshot()
		schemas[name] = snap.Tree
		return snap.OpenAPI
	}

	specs := make([]*apispec.Operation, len(ops))
	for i, op := range ops {
		spec := &apispec.Operation{
			Method:    strings.ToUpper(op.method),
			Path:      op.path,
			Params:    op.params,
			Request:   snapshot(op.request),
			Responses: make(map[int]*openapi3.Schema, len(op.responses)),
		}
		for code, name := range op.responses {
			spec.Responses[code] = snapshot(name)
		}
		specs[i] = spec
	}
	return apispec.Document(l.config.Title, l.config.Version, specs), schemas
}

func copyResponses(m map[int]string) map[int]string {
	res := make(map[int]string, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

// PublishJob pushes the document to the server every publish interval and
// once more when ctx is done.
func (l *Listener) PublishJob(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(l.config.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			l.publish(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			l.publish(ctx)
		}
	}
}

func (l *Listener) publish(ctx context.Context) {
	doc, schemas := l.Document()
	if l.client == nil {
		slog.Debug("no server configured, skipping publish", "paths", len(doc.Paths))
		return
	}

	update := siegeserver.ListenerUpdate{
		ListenerID: l.listenerID,
		Spec:       doc,
		Schemas:    schemas,
		Metrics:    metricsText(),
	}
	if err := l.client.Update(ctx, update); err != nil {
		slog.Warn("could not publish update", "err", err)
		return
	}
	slog.Info("published update", "paths", len(doc.Paths), "schemas", len(schemas))
}

// metricsText renders the process metrics in the Prometheus text format.
func metricsText() string {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		slog.Warn("could not gather metrics", "err", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("could not encode metrics", "err", err)
			break
		}
	}
	return buf.String()
}
