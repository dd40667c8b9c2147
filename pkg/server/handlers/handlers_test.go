package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/pipeline"
	"github.com/soundprediction/chronotope/pkg/types"
)

type stubService struct {
	processResult *pipeline.Result
	processErr    error
	processText   string
	processChunk  int
	processEvents []types.ProgressEvent
	processDone   chan struct{}
	processCancel context.CancelFunc

	addID     string
	addErr    error
	addedFact types.Fact

	hyperData   *graph.Hyperstructure
	hyperErr    error
	hyperFilter graph.SpatiotemporalFilter

	spatial []graph.SpatialHyperedge

	clearErr error

	askResult   *chronotope.AskResult
	askErr      error
	askQuestion string
	askLoops    int

	multi []chronotope.AskAnswer
}

func (s *stubService) ProcessText(_ context.Context, text string, chunkSize int, progress func(types.ProgressEvent)) (*pipeline.Result, error) {
	s.processText = text
	s.processChunk = chunkSize
	if s.processCancel != nil {
		s.processCancel()
	}
	if progress != nil {
		for _, ev := range s.processEvents {
			progress(ev)
		}
	}
	if s.processDone != nil {
		close(s.processDone)
	}
	if s.processErr != nil {
		return nil, s.processErr
	}
	if s.processResult == nil {
		return &pipeline.Result{}, nil
	}
	return s.processResult, nil
}

func (s *stubService) AddHyperedge(_ context.Context, fact types.Fact) (string, error) {
	s.addedFact = fact
	return s.addID, s.addErr
}

func (s *stubService) HyperstructureData(_ context.Context, f graph.SpatiotemporalFilter) (*graph.Hyperstructure, error) {
	s.hyperFilter = f
	if s.hyperErr != nil {
		return nil, s.hyperErr
	}
	if s.hyperData == nil {
		return &graph.Hyperstructure{Name: "Neo4j Hyperstructure"}, nil
	}
	return s.hyperData, nil
}

func (s *stubService) SpatialHyperedges(_ context.Context) ([]graph.SpatialHyperedge, error) {
	return s.spatial, nil
}

func (s *stubService) Clear(_ context.Context) error {
	return s.clearErr
}

func (s *stubService) Ask(_ context.Context, question string, maxLoops int) (*chronotope.AskResult, error) {
	s.askQuestion = question
	s.askLoops = maxLoops
	return s.askResult, s.askErr
}

func (s *stubService) AskMulti(_ context.Context, _ string, maxLoops int) ([]chronotope.AskAnswer, error) {
	s.askLoops = maxLoops
	return s.multi, s.askErr
}

func testRouter(service Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	ingest := NewIngestHandler(service)
	retrieve := NewRetrieveHandler(service)
	query := NewQueryHandler(service)

	router.POST("/api/process-text", ingest.ProcessText)
	router.GET("/api/process-text/stream", ingest.ProcessTextStream)
	router.POST("/api/hyperedge/add", ingest.AddHyperedge)
	router.POST("/api/hyperstructure/clear", ingest.Clear)
	router.GET("/api/hyperstructure/data", retrieve.HyperstructureData)
	router.GET("/api/hyperedge/extract_structured_data", retrieve.ExtractStructuredData)
	router.POST("/api/query/ask", query.Ask)
	router.POST("/api/query/ask_multi", query.AskMulti)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProcessText(t *testing.T) {
	service := &stubService{processResult: &pipeline.Result{Facts: make([]types.Fact, 2)}}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/process-text", `{"text": "Marie Curie won a prize.", "chunk_size": 5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, float64(2), resp["facts_processed"])
	assert.Equal(t, "Marie Curie won a prize.", service.processText)
	assert.Equal(t, 5, service.processChunk)
}

func TestProcessTextRejectsBlankText(t *testing.T) {
	service := &stubService{}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/process-text", `{"text": "   "}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "Text input is required", resp["message"])
}

func TestProcessTextPipelineFailure(t *testing.T) {
	service := &stubService{processErr: errors.New("neo4j down")}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/process-text", `{"text": "hello world"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["message"], "Pipeline processing failed")
}

func TestProcessTextStream(t *testing.T) {
	fact := types.Fact{
		Subjects:     []string{"Marie Curie"},
		Objects:      []string{"The Nobel Prize"},
		RelationType: "wins",
	}
	service := &stubService{
		processResult: &pipeline.Result{Facts: []types.Fact{fact}},
		processEvents: []types.ProgressEvent{
			{Type: types.EventStage, Stage: types.StageGraphDone, Sentence: 1, Message: "Fact from sentence 1 successfully added to graph", Fact: &fact},
		},
	}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodGet, "/api/process-text/stream?text=Marie+Curie+won+a+prize.&chunk_size=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"type":"info","message":"Starting text processing pipeline..."}`)
	assert.Contains(t, body, "Fact from sentence 1 successfully added to graph")
	assert.Contains(t, body, "Extracted spatio-temporal fact #1: Marie Curie wins The Nobel Prize")
	assert.Contains(t, body, "Processing complete. Added 1 facts to the graph.")
	assert.Equal(t, 2, service.processChunk)

	// The preview follows its graph_done event, not the end of the run.
	stageIdx := strings.Index(body, "Fact from sentence 1 successfully added to graph")
	previewIdx := strings.Index(body, "Extracted spatio-temporal fact #1")
	completeIdx := strings.Index(body, "Processing complete.")
	assert.Greater(t, previewIdx, stageIdx)
	assert.Greater(t, completeIdx, previewIdx)
}

func TestProcessTextStreamClientDisconnect(t *testing.T) {
	// Far more events than the stream buffer holds, so a run whose sends do
	// not watch the request context would block forever once the reader is
	// gone. The stub cancels the request mid-run to simulate the client
	// hanging up, then keeps emitting.
	events := make([]types.ProgressEvent, 200)
	for i := range events {
		events[i] = types.ProgressEvent{Type: types.EventInfo, Message: fmt.Sprintf("event %d", i)}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	service := &stubService{processEvents: events, processDone: done, processCancel: cancel}
	router := testRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/process-text/stream?text=Marie+Curie+won+a+prize.", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run stayed blocked after the client disconnected")
	}
}

func TestProcessTextStreamRequiresText(t *testing.T) {
	router := testRouter(&stubService{})
	w := doJSON(t, router, http.MethodGet, "/api/process-text/stream", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddHyperedge(t *testing.T) {
	service := &stubService{addID: "he_0000abcd"}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/hyperedge/add", `{
		"subjects": ["Marie Curie"],
		"objects": ["The Sorbonne"],
		"relation_type": "teaches at",
		"temporal_intervals": [{"start_time": "1906-01-01T00:00:00", "end_time": null}],
		"spatial_contexts": [{"name": "Paris", "type": "Point", "coordinates": [2.3522, 48.8566]}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "he_0000abcd", resp["hyperedge_id"])

	spatial := resp["spatial_data"].([]any)
	require.Len(t, spatial, 1)
	datum := spatial[0].(map[string]any)
	assert.Equal(t, "Point", datum["type"])
	assert.Equal(t, "Paris", datum["name"])
	assert.Equal(t, []any{2.3522, 48.8566}, datum["coordinates"])
	assert.Equal(t, "he_0000abcd", datum["hyperedge_id"])

	assert.Equal(t, types.FactTypeTemporal, service.addedFact.FactType)
	assert.Equal(t, []string{"Marie Curie"}, service.addedFact.Subjects)
}

func TestAddHyperedgeRejectsMissingRelation(t *testing.T) {
	router := testRouter(&stubService{})
	w := doJSON(t, router, http.MethodPost, "/api/hyperedge/add", `{"subjects": ["a"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClear(t *testing.T) {
	router := testRouter(&stubService{})
	w := doJSON(t, router, http.MethodPost, "/api/hyperstructure/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Successfully cleared all hyperstructure data")
}

func TestClearFailure(t *testing.T) {
	router := testRouter(&stubService{clearErr: errors.New("boom")})
	w := doJSON(t, router, http.MethodPost, "/api/hyperstructure/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Neo4j clear operation failed")
}

func TestHyperstructureDataParsesFilters(t *testing.T) {
	service := &stubService{hyperData: &graph.Hyperstructure{
		Name:           "Neo4j Hyperstructure",
		Entities:       []string{"Marie Curie"},
		HyperedgeCount: 1,
	}}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodGet,
		"/api/hyperstructure/data?start_time=1900-01-01T00:00:00&location_names=Paris,%20Warsaw&include_spatially_unconstrained=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, service.hyperFilter.StartTime)
	assert.Equal(t, "1900-01-01T00:00:00", *service.hyperFilter.StartTime)
	assert.Nil(t, service.hyperFilter.EndTime)
	assert.Equal(t, []string{"Paris", "Warsaw"}, service.hyperFilter.LocationNames)
	assert.True(t, service.hyperFilter.IncludeSpatiallyUnconstrained)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Contains(t, resp["message"], "Retrieved 1 hyperedges and 1 entities")
	assert.Contains(t, resp["message"], "time: 1900-01-01T00:00:00 to no end")
	assert.Contains(t, resp["message"], "names: Paris, Warsaw")
}

func TestHyperstructureDataRejectsShortPolygon(t *testing.T) {
	router := testRouter(&stubService{})
	w := doJSON(t, router, http.MethodGet, "/api/hyperstructure/data?location_coordinates=%5B%5B0%2C0%5D%2C%5B1%2C1%5D%5D", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "at least 3 [lon, lat] pairs")
}

func TestHyperstructureDataRejectsBadPolygonJSON(t *testing.T) {
	router := testRouter(&stubService{})
	w := doJSON(t, router, http.MethodGet, "/api/hyperstructure/data?location_coordinates=notjson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid JSON format for location coordinates")
}

func TestAsk(t *testing.T) {
	service := &stubService{askResult: &chronotope.AskResult{
		Valid:      true,
		Descriptor: "John studies at MIT",
		Trace:      []chronotope.ToolTrace{{Tool: "query_facts"}},
	}}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/query/ask", `{"message": "Who studies at MIT?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, true, resp["valid"])
	assert.Equal(t, "John studies at MIT", resp["descriptor"])
	assert.Equal(t, "Who studies at MIT?", service.askQuestion)
	assert.Equal(t, defaultMaxLoops, service.askLoops)
}

func TestAskMulti(t *testing.T) {
	service := &stubService{multi: []chronotope.AskAnswer{
		{Question: "Who studies at MIT?", AskResult: chronotope.AskResult{Valid: true, Descriptor: "John"}},
	}}
	router := testRouter(service)

	w := doJSON(t, router, http.MethodPost, "/api/query/ask_multi", `{"text": "Who studies at MIT?", "max_loops": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	results := resp["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "Who studies at MIT?", first["question"])
	assert.Equal(t, true, first["valid"])
	assert.Equal(t, 2, service.askLoops)
}
