package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronotope/pkg/server/dto"
)

const defaultMaxLoops = 3

// QueryHandler answers natural language questions with the function-calling
// loop.
type QueryHandler struct {
	service Service
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// Ask handles POST /api/query/ask.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req dto.AskQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if req.MaxLoops == 0 {
		req.MaxLoops = defaultMaxLoops
	}

	result, err := h.service.Ask(c.Request.Context(), req.Message, req.MaxLoops)
	if err != nil {
		c.JSON(http.StatusOK, dto.AskQueryResponse{
			Status:     "error",
			Descriptor: err.Error(),
			ToolTrace:  nil,
		})
		return
	}

	c.JSON(http.StatusOK, dto.AskQueryResponse{
		Status:     "success",
		Valid:      result.Valid,
		Descriptor: result.Descriptor,
		ToolTrace:  result.Trace,
	})
}

// AskMulti handles POST /api/query/ask_multi.
func (h *QueryHandler) AskMulti(c *gin.Context) {
	var req dto.MultiAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if req.MaxLoops == 0 {
		req.MaxLoops = defaultMaxLoops
	}

	answers, err := h.service.AskMulti(c.Request.Context(), req.Text, req.MaxLoops)
	if err != nil {
		c.JSON(http.StatusOK, dto.MultiAskResponse{Status: "error", Results: []dto.MultiAskItem{}})
		return
	}

	results := make([]dto.MultiAskItem, 0, len(answers))
	for _, answer := range answers {
		results = append(results, dto.MultiAskItem{
			Question:   answer.Question,
			Valid:      answer.Valid,
			Descriptor: answer.Descriptor,
			ToolTrace:  answer.Trace,
		})
	}
	c.JSON(http.StatusOK, dto.MultiAskResponse{Status: "success", Results: results})
}
