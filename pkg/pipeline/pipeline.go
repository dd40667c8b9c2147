// Package pipeline turns free text into graph writes: sentences fan out
// through canonicalisation, structured extraction and geocoding, each
// resulting fact is committed as it is produced, and modifications and
// causal inference run over the whole text once every temporal fact has
// landed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/chronotope/pkg/extract"
	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// Geocoder resolves raw location names into spatial contexts.
type Geocoder interface {
	Expand(ctx context.Context, names []string) []types.SpatialContext
}

// GraphWriter is the slice of the store the pipeline writes through.
type GraphWriter interface {
	WriteFact(ctx context.Context, fact types.Fact) error
	WriteStateFact(ctx context.Context, sf types.StateFact) error
	WriteModification(ctx context.Context, m types.Modification) error
}

// Options tune the pipeline. Zero values fall back to the defaults used by
// the HTTP server.
type Options struct {
	ChunkSize        int
	UseLLMClassifier bool

	// SmallModel handles classification, extraction and modifications;
	// MidModel handles canonicalisation and causal inference.
	SmallModel string
	MidModel   string
}

// Pipeline orchestrates one text-to-graph ingestion run. It is safe for
// concurrent use; each Process call tracks its own state.
type Pipeline struct {
	classifier    *extract.Classifier
	canonical     *extract.Canonicalizer
	extractor     *extract.FactExtractor
	modifications *extract.ModificationExtractor
	causal        *extract.CausalInferer
	geocoder      Geocoder
	store         GraphWriter
	chunkSize     int
	logger        *slog.Logger
}

// New wires a pipeline from its collaborators.
func New(llm nlp.Client, geocoder Geocoder, store GraphWriter, opts Options, logger *slog.Logger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 3
	}
	if opts.SmallModel == "" {
		opts.SmallModel = nlp.DefaultSmallModel
	}
	if opts.MidModel == "" {
		opts.MidModel = nlp.DefaultMidModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:    extract.NewClassifier(llm, opts.SmallModel, opts.UseLLMClassifier, logger),
		canonical:     extract.NewCanonicalizer(llm, opts.MidModel, logger),
		extractor:     extract.NewFactExtractor(llm, opts.SmallModel, logger),
		modifications: extract.NewModificationExtractor(llm, opts.SmallModel, logger),
		causal:        extract.NewCausalInferer(llm, opts.MidModel, logger),
		geocoder:      geocoder,
		store:         store,
		chunkSize:     opts.ChunkSize,
		logger:        logger,
	}
}

// Result summarises one ingestion run.
type Result struct {
	Facts         []types.Fact
	StateFacts    []types.StateFact
	Modifications []types.Modification

	// Failed counts temporal facts that could not be written. Any failure
	// suppresses causal inference, since state events locate their causes by
	// exact match against the committed graph.
	Failed int
}

type sentenceJob struct {
	chunk    int
	sentence int
	text     string
}

// Process runs the full pipeline over one text with the configured chunk
// size. Progress events are delivered through the optional callback in stage
// order per sentence; events across sentences interleave as the work
// completes.
func (p *Pipeline) Process(ctx context.Context, text string, progress func(types.ProgressEvent)) (*Result, error) {
	return p.ProcessWithChunkSize(ctx, text, 0, progress)
}

// ProcessWithChunkSize is Process with a per-call chunk size. Zero or
// negative falls back to the configured size.
func (p *Pipeline) ProcessWithChunkSize(ctx context.Context, text string, chunkSize int, progress func(types.ProgressEvent)) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = p.chunkSize
	}
	emit := func(ev types.ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	cleaned := extract.CleanText(text)
	regular, modification := p.classifier.Classify(ctx, cleaned)

	result := &Result{}

	var jobs []sentenceJob
	for _, chunk := range extract.SplitIntoChunks(regular, chunkSize) {
		for i, sentence := range extract.SplitIntoSentences(chunk.Text) {
			job := sentenceJob{chunk: chunk.Index, sentence: i + 1, text: sentence}
			jobs = append(jobs, job)
			emit(types.ProgressEvent{
				Type:     types.EventStage,
				Stage:    types.StageQueued,
				Chunk:    job.chunk,
				Sentence: job.sentence,
				Message:  fmt.Sprintf("Queued sentence %d from chunk %d", job.sentence, job.chunk),
			})
		}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, job := range jobs {
		wg.Add(1)
		go func(job sentenceJob) {
			defer wg.Done()
			facts, failed := p.processSentence(ctx, regular, job, emit)
			mu.Lock()
			result.Facts = append(result.Facts, facts...)
			result.Failed += failed
			mu.Unlock()
		}(job)
	}
	wg.Wait()

	// Modifications target facts that may have been asserted earlier in the
	// same text, so they apply only after every temporal write has settled.
	if modification != "" {
		emit(types.ProgressEvent{Type: types.EventInfo, Message: "Processing modification sentences"})
		result.Modifications = p.applyModifications(ctx, modification)
	}

	result.StateFacts = p.inferStateFacts(ctx, text, result, emit)
	return result, nil
}

// processSentence runs one sentence end to end and returns the facts that
// were committed plus the number that failed.
func (p *Pipeline) processSentence(ctx context.Context, fullContext string, job sentenceJob, emit func(types.ProgressEvent)) ([]types.Fact, int) {
	emit(types.ProgressEvent{
		Type:     types.EventStage,
		Stage:    types.StageTemporalStart,
		Chunk:    job.chunk,
		Sentence: job.sentence,
		Message:  fmt.Sprintf("Expanding temporal facts for sentence %d: %s", job.sentence, job.text),
	})

	expanded := p.canonical.Expand(ctx, job.text, fullContext)

	emit(types.ProgressEvent{
		Type:     types.EventStage,
		Stage:    types.StageTemporalDone,
		Chunk:    job.chunk,
		Sentence: job.sentence,
		Message:  fmt.Sprintf("Finished expanding the spatio-temporal facts for sentence %d!", job.sentence),
	})

	raws, err := p.extractor.Extract(ctx, expanded)
	if err != nil {
		p.logger.Warn("structure extraction failed",
			"chunk", job.chunk, "sentence", job.sentence, "error", err)
		return nil, 0
	}

	emit(types.ProgressEvent{
		Type:     types.EventStage,
		Stage:    types.StageStructureDone,
		Chunk:    job.chunk,
		Sentence: job.sentence,
		Message:  fmt.Sprintf("Finished extracting the structured JSON for sentence %d!", job.sentence),
	})

	var committed []types.Fact
	failed := 0
	for i := range raws {
		raw := raws[i]
		if !raw.Sanitise() {
			p.logger.Debug("dropping placeholder fact",
				"chunk", job.chunk, "sentence", job.sentence)
			continue
		}

		fact := types.Fact{
			FactType:          types.FactTypeTemporal,
			Subjects:          raw.Subjects,
			Objects:           raw.Objects,
			RelationType:      raw.RelationType,
			TemporalIntervals: raw.TemporalIntervals,
			SpatialContexts:   p.geocoder.Expand(ctx, raw.LocationNames()),
		}

		emit(types.ProgressEvent{
			Type:     types.EventStage,
			Stage:    types.StageSpatialDone,
			Chunk:    job.chunk,
			Sentence: job.sentence,
			Message:  fmt.Sprintf("Finished spatial context and coordinates extraction for sentence %d fact %d", job.sentence, i+1),
		})

		if err := p.store.WriteFact(ctx, fact); err != nil {
			failed++
			p.logger.Warn("graph write failed",
				"chunk", job.chunk, "sentence", job.sentence, "error", err)
			emit(types.ProgressEvent{
				Type:     types.EventStage,
				Stage:    types.StageGraphFailed,
				Chunk:    job.chunk,
				Sentence: job.sentence,
				Message:  fmt.Sprintf("Fact from sentence %d failed to be added to graph", job.sentence),
			})
			continue
		}

		committed = append(committed, fact)
		emit(types.ProgressEvent{
			Type:     types.EventStage,
			Stage:    types.StageGraphDone,
			Chunk:    job.chunk,
			Sentence: job.sentence,
			Message:  fmt.Sprintf("Fact from sentence %d successfully added to graph", job.sentence),
			Fact:     &fact,
		})
	}
	return committed, failed
}

// applyModifications extracts structured corrections from the modification
// text, resolves their location names and applies them to the graph.
func (p *Pipeline) applyModifications(ctx context.Context, modificationText string) []types.Modification {
	raws, err := p.modifications.Extract(ctx, modificationText)
	if err != nil {
		p.logger.Warn("modification extraction failed", "error", err)
		return nil
	}

	var applied []types.Modification
	for _, raw := range raws {
		m := types.Modification{
			FactType:     types.FactTypeModification,
			AffectedFact: raw.AffectedFact,
			ModifyFieldsTo: types.FieldChanges{
				Subjects:          raw.ModifyFieldsTo.Subjects,
				Objects:           raw.ModifyFieldsTo.Objects,
				RelationType:      raw.ModifyFieldsTo.RelationType,
				TemporalIntervals: raw.ModifyFieldsTo.TemporalIntervals,
			},
		}
		if len(raw.ModifyFieldsTo.SpatialContexts) > 0 {
			m.ModifyFieldsTo.SpatialContexts = p.geocoder.Expand(ctx, raw.ModifyFieldsTo.SpatialContexts)
		}
		if err := m.Validate(); err != nil {
			p.logger.Warn("skipping invalid modification", "error", err)
			continue
		}
		if err := p.store.WriteModification(ctx, m); err != nil {
			p.logger.Warn("modification write failed", "error", err)
			continue
		}
		applied = append(applied, m)
	}
	return applied
}

// inferStateFacts runs causal inference over the whole text, but only when
// every temporal fact reached the graph. State events locate their affected
// and cause hyperedges by exact set match; a missing fact would make those
// locators silently match nothing.
func (p *Pipeline) inferStateFacts(ctx context.Context, text string, result *Result, emit func(types.ProgressEvent)) []types.StateFact {
	if len(result.Facts) == 0 {
		return nil
	}
	if result.Failed > 0 {
		p.logger.Warn("skipping state fact extraction, some temporal facts failed to commit",
			"failed", result.Failed)
		emit(types.ProgressEvent{
			Type:    types.EventInfo,
			Message: fmt.Sprintf("Skipping state fact extraction: %d temporal facts failed to commit", result.Failed),
		})
		return nil
	}

	skeletons := extract.BuildStateSkeletons(result.Facts)
	if len(skeletons) == 0 {
		return nil
	}

	states := p.causal.Infer(ctx, text, skeletons)
	var written []types.StateFact
	for _, sf := range states {
		if err := p.store.WriteStateFact(ctx, sf); err != nil {
			p.logger.Warn("state fact write failed", "error", err)
			continue
		}
		written = append(written, sf)
	}
	if len(written) > 0 {
		emit(types.ProgressEvent{
			Type:    types.EventInfo,
			Count:   len(written),
			Message: fmt.Sprintf("Added %d state change events to the graph", len(written)),
		})
	}
	return written
}
