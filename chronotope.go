package chronotope

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/chronotope/pkg/alert"
	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/geocode"
	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/pipeline"
	"github.com/soundprediction/chronotope/pkg/types"
)

var (
	// ErrNilConfig is returned when a client is created without configuration.
	ErrNilConfig = errors.New("chronotope: config is nil")
	// ErrEmptyText is returned when an ingestion call carries no text.
	ErrEmptyText = errors.New("chronotope: text is empty")
)

// Client is the top-level entry point: it owns the language model stack, the
// geocoder, the Neo4j store and the ingestion pipeline, and exposes the
// operations the HTTP server and CLI are built on.
type Client struct {
	config   *config.Config
	logger   *slog.Logger
	llm      nlp.Client
	geocoder *geocode.Client
	store    *graph.Store
	pipeline *pipeline.Pipeline
}

// NewClient wires a client from configuration. The language model client is
// wrapped with retries and, when enabled, a circuit breaker that raises
// alerts on open. The Neo4j connection is not verified until Connect.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := nlp.NewOpenAIClient(cfg.LLM.APIKey, nlp.Config{
		Model:   cfg.LLM.SmallModel,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.Timeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	var llm nlp.Client = nlp.NewRetryClient(base, nil)
	if cfg.CircuitBreaker.Enabled {
		llm = nlp.NewCircuitBreakerClient(llm, cfg.CircuitBreaker, alert.New(cfg.Alert), "openai")
	}

	store, err := graph.NewStore(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	geocoder := geocode.NewClient(cfg.Geocode, logger)

	return &Client{
		config:   cfg,
		logger:   logger,
		llm:      llm,
		geocoder: geocoder,
		store:    store,
		pipeline: pipeline.New(llm, geocoder, store, pipeline.Options{
			ChunkSize:        cfg.Pipeline.ChunkSize,
			UseLLMClassifier: cfg.Pipeline.UseLLMClassifier,
			SmallModel:       cfg.LLM.SmallModel,
			MidModel:         cfg.LLM.MidModel,
		}, logger),
	}, nil
}

// Connect verifies the Neo4j connection and bootstraps the schema.
func (c *Client) Connect(ctx context.Context) error {
	return c.store.Connect(ctx)
}

// Close releases the driver and language model resources.
func (c *Client) Close(ctx context.Context) error {
	err := c.store.Close(ctx)
	if cerr := c.llm.Close(); err == nil {
		err = cerr
	}
	return err
}

// ProcessText runs the full ingestion pipeline over one text. A positive
// chunkSize overrides the configured sentence chunking; progress events are
// delivered through the optional callback.
func (c *Client) ProcessText(ctx context.Context, text string, chunkSize int, progress func(types.ProgressEvent)) (*pipeline.Result, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return c.pipeline.ProcessWithChunkSize(ctx, text, chunkSize, progress)
}

// AddHyperedge writes one prebuilt fact and returns its display id.
func (c *Client) AddHyperedge(ctx context.Context, fact types.Fact) (string, error) {
	return c.store.AddHyperedge(ctx, fact)
}

// HyperstructureData returns the visualisation payload, optionally filtered.
func (c *Client) HyperstructureData(ctx context.Context, f graph.SpatiotemporalFilter) (*graph.Hyperstructure, error) {
	return c.store.HyperstructureData(ctx, f)
}

// SpatialHyperedges returns the hyperedges that carry geometries, for map
// rendering.
func (c *Client) SpatialHyperedges(ctx context.Context) ([]graph.SpatialHyperedge, error) {
	return c.store.SpatialHyperedges(ctx)
}

// Statistics returns graph-wide node and relationship counts.
func (c *Client) Statistics(ctx context.Context) (*graph.Statistics, error) {
	return c.store.Statistics(ctx)
}

// Clear removes everything from the graph.
func (c *Client) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Store exposes the underlying graph store.
func (c *Client) Store() *graph.Store {
	return c.store
}

// LLM exposes the wrapped language model client.
func (c *Client) LLM() nlp.Client {
	return c.llm
}
