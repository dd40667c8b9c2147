package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/server/dto"
	"github.com/soundprediction/chronotope/pkg/types"
)

// RetrieveHandler handles read requests over the hypergraph.
type RetrieveHandler struct {
	service Service
}

// NewRetrieveHandler creates a new retrieve handler.
func NewRetrieveHandler(service Service) *RetrieveHandler {
	return &RetrieveHandler{service: service}
}

// HyperstructureData handles GET /api/hyperstructure/data. All filters are
// optional: start_time, end_time, comma-separated location_names, a JSON
// polygon in location_coordinates and include_spatially_unconstrained.
func (h *RetrieveHandler) HyperstructureData(c *gin.Context) {
	filter := graph.SpatiotemporalFilter{
		IncludeSpatiallyUnconstrained: c.Query("include_spatially_unconstrained") == "true",
	}
	if v := c.Query("start_time"); v != "" {
		filter.StartTime = &v
	}
	if v := c.Query("end_time"); v != "" {
		filter.EndTime = &v
	}
	if v := c.Query("location_names"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				filter.LocationNames = append(filter.LocationNames, trimmed)
			}
		}
	}
	if v := c.Query("location_coordinates"); v != "" {
		var pairs [][]float64
		if err := json.Unmarshal([]byte(v), &pairs); err != nil {
			c.JSON(http.StatusOK, dto.HyperstructureResponse{
				Status:  "error",
				Message: "Invalid JSON format for location coordinates",
			})
			return
		}
		if len(pairs) < 3 {
			c.JSON(http.StatusOK, dto.HyperstructureResponse{
				Status:  "error",
				Message: "Invalid location coordinates format. Must be a JSON array of at least 3 [lon, lat] pairs.",
			})
			return
		}
		for _, pair := range pairs {
			if len(pair) == 2 {
				filter.LocationCoordinates = append(filter.LocationCoordinates, types.Position{pair[0], pair[1]})
			}
		}
	}

	data, err := h.service.HyperstructureData(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusOK, dto.HyperstructureResponse{
			Status:  "error",
			Message: fmt.Sprintf("Neo4j query failed: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, dto.HyperstructureResponse{
		Status:             "success",
		Message:            fmt.Sprintf("Retrieved %d hyperedges and %d entities%s", data.HyperedgeCount, len(data.Entities), filterInfo(filter)),
		HyperstructureData: data,
	})
}

// filterInfo summarises the active filters for the response message.
func filterInfo(f graph.SpatiotemporalFilter) string {
	var parts []string
	if f.StartTime != nil || f.EndTime != nil {
		start, end := "no start", "no end"
		if f.StartTime != nil {
			start = *f.StartTime
		}
		if f.EndTime != nil {
			end = *f.EndTime
		}
		parts = append(parts, fmt.Sprintf("time: %s to %s", start, end))
	}
	if len(f.LocationNames) > 0 {
		parts = append(parts, "names: "+strings.Join(f.LocationNames, ", "))
	}
	if len(f.LocationCoordinates) > 0 {
		parts = append(parts, "polygon area")
		if f.IncludeSpatiallyUnconstrained {
			parts = append(parts, "(including unconstrained)")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (filtered: " + strings.Join(parts, "; ") + ")"
}

// ExtractStructuredData handles GET /api/hyperedge/extract_structured_data,
// returning the hyperedges that carry geometries for map rendering.
func (h *RetrieveHandler) ExtractStructuredData(c *gin.Context) {
	edges, err := h.service.SpatialHyperedges(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, dto.ExtractedSpatialResponse{
			Status:  "error",
			Message: fmt.Sprintf("Error getting extracted structured data: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, dto.ExtractedSpatialResponse{
		Status:          "success",
		Message:         fmt.Sprintf("Retrieved %d hyperedges with spatial contexts from Neo4j", len(edges)),
		Hyperedges:      edges,
		TotalHyperedges: len(edges),
	})
}
