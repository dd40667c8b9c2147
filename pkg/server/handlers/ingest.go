package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronotope/pkg/extract"
	"github.com/soundprediction/chronotope/pkg/server/dto"
	"github.com/soundprediction/chronotope/pkg/types"
)

// IngestHandler handles ingestion requests: pipeline runs, direct hyperedge
// writes and graph clearing.
type IngestHandler struct {
	service Service
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(service Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// ProcessText handles POST /api/process-text.
func (h *IngestHandler) ProcessText(c *gin.Context) {
	var req dto.ProcessTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusOK, dto.ProcessTextResponse{
			Status:  "error",
			Message: "Text input is required",
		})
		return
	}

	result, err := h.service.ProcessText(c.Request.Context(), strings.TrimSpace(req.Text), req.ChunkSize, nil)
	if err != nil {
		c.JSON(http.StatusOK, dto.ProcessTextResponse{
			Status:  "error",
			Message: fmt.Sprintf("Pipeline processing failed: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ProcessTextResponse{
		Status:         "success",
		Message:        fmt.Sprintf("Successfully processed text and added %d facts to the graph", len(result.Facts)),
		FactsProcessed: len(result.Facts),
	})
}

// ProcessTextStream handles GET /api/process-text/stream. It runs the
// pipeline in the background and streams progress as Server-Sent Events.
func (h *IngestHandler) ProcessTextStream(c *gin.Context) {
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "text query parameter is required"})
		return
	}
	chunkSize, err := strconv.Atoi(c.DefaultQuery("chunk_size", "3"))
	if err != nil {
		chunkSize = 3
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	events := make(chan types.ProgressEvent, 64)
	go func() {
		defer close(events)

		// Every send races the client hanging up; once the consumer loop has
		// returned nothing drains the channel, so sends must bail out on a
		// cancelled request instead of blocking the pipeline run forever.
		send := func(ev types.ProgressEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(types.ProgressEvent{Type: types.EventInfo, Message: "Starting text processing pipeline..."}) {
			return
		}
		if n := len(extract.SplitIntoSentences(text)); n > 0 {
			send(types.ProgressEvent{Type: types.EventInfo, Message: fmt.Sprintf("Detected %d sentences to process", n)})
		}

		var factCount atomic.Int64
		result, err := h.service.ProcessText(ctx, text, chunkSize, func(ev types.ProgressEvent) {
			if ev.Message != "" && !send(ev) {
				return
			}
			if ev.Fact != nil {
				n := factCount.Add(1)
				send(types.ProgressEvent{
					Type:    types.EventStage,
					Count:   int(n),
					Message: fmt.Sprintf("Extracted spatio-temporal fact #%d: %s", n, factPreview(*ev.Fact)),
				})
			}
		})
		if err != nil {
			send(types.ProgressEvent{Type: types.EventError, Message: fmt.Sprintf("Pipeline processing failed: %v", err)})
			return
		}

		send(types.ProgressEvent{
			Type:    types.EventComplete,
			Count:   len(result.Facts),
			Message: fmt.Sprintf("Processing complete. Added %d facts to the graph.", len(result.Facts)),
		})
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// factPreview renders a one-line summary of a committed fact.
func factPreview(fact types.Fact) string {
	if len(fact.Subjects) == 0 && len(fact.Objects) == 0 && fact.RelationType == "" {
		return "structured fact"
	}
	subjects := "(unknown)"
	if len(fact.Subjects) > 0 {
		subjects = strings.Join(fact.Subjects, ", ")
	}
	objects := "(none)"
	if len(fact.Objects) > 0 {
		objects = strings.Join(fact.Objects, ", ")
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", subjects, fact.RelationType, objects))
}

// AddHyperedge handles POST /api/hyperedge/add.
func (h *IngestHandler) AddHyperedge(c *gin.Context) {
	var req dto.AddHyperedgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	id, err := h.service.AddHyperedge(c.Request.Context(), req.Fact())
	if err != nil {
		c.JSON(http.StatusOK, dto.AddHyperedgeResponse{
			Status:  "error",
			Message: fmt.Sprintf("Neo4j operation failed: %v", err),
		})
		return
	}

	spatialData := []dto.SpatialDatum{}
	for _, sc := range req.SpatialContexts {
		name := sc.Name
		if name == "" {
			name = "Unknown"
		}
		switch {
		case sc.Type == types.GeometryPoint && sc.Point != nil:
			spatialData = append(spatialData, dto.SpatialDatum{
				Type:        types.GeometryPoint,
				Name:        name,
				Coordinates: []float64{sc.Point.Lon(), sc.Point.Lat()},
				HyperedgeID: id,
			})
		case sc.Type == types.GeometryPolygon && len(sc.Polygon) > 0:
			spatialData = append(spatialData, dto.SpatialDatum{
				Type:        types.GeometryPolygon,
				Name:        name,
				Coordinates: sc.Polygon,
				HyperedgeID: id,
			})
		case sc.Type == types.GeometryMultiPolygon && len(sc.MultiPolygon) > 0:
			spatialData = append(spatialData, dto.SpatialDatum{
				Type:        types.GeometryMultiPolygon,
				Name:        name,
				Coordinates: sc.MultiPolygon,
				HyperedgeID: id,
			})
		}
	}

	c.JSON(http.StatusOK, dto.AddHyperedgeResponse{
		Status:      "success",
		Message:     fmt.Sprintf("Successfully added hyperedge with %d spatial contexts", len(spatialData)),
		HyperedgeID: id,
		SpatialData: spatialData,
	})
}

// Clear handles POST /api/hyperstructure/clear.
func (h *IngestHandler) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, dto.StatusResponse{
			Status:  "error",
			Message: fmt.Sprintf("Neo4j clear operation failed: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:  "success",
		Message: "Successfully cleared all hyperstructure data from the database",
	})
}
