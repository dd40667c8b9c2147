// Package handlers implements the HTTP handlers of the chronotope API.
package handlers

import (
	"context"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/pipeline"
	"github.com/soundprediction/chronotope/pkg/types"
)

// Service is the slice of the chronotope client the handlers are built on.
type Service interface {
	ProcessText(ctx context.Context, text string, chunkSize int, progress func(types.ProgressEvent)) (*pipeline.Result, error)
	AddHyperedge(ctx context.Context, fact types.Fact) (string, error)
	HyperstructureData(ctx context.Context, f graph.SpatiotemporalFilter) (*graph.Hyperstructure, error)
	SpatialHyperedges(ctx context.Context) ([]graph.SpatialHyperedge, error)
	Clear(ctx context.Context) error
	Ask(ctx context.Context, question string, maxLoops int) (*chronotope.AskResult, error)
	AskMulti(ctx context.Context, text string, maxLoops int) ([]chronotope.AskAnswer, error)
}
