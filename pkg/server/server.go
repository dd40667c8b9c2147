// Package server exposes the chronotope operations over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/server/handlers"
)

// Server is the HTTP front end over a graph service.
type Server struct {
	config  *config.Config
	router  *gin.Engine
	service handlers.Service
	server  *http.Server
}

// New returns a server that will serve cfg's host and port once Setup and
// Start run.
func New(cfg *config.Config, service handlers.Service) *Server {
	return &Server{
		config:  cfg,
		service: service,
	}
}

// Setup builds the router, middleware and route table.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(s.corsConfig()))

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// corsConfig builds the browser allowlist from configuration.
func (s *Server) corsConfig() cors.Config {
	origins := s.config.Server.FrontendOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func (s *Server) setupRoutes() {
	ingestHandler := handlers.NewIngestHandler(s.service)
	retrieveHandler := handlers.NewRetrieveHandler(s.service)
	queryHandler := handlers.NewQueryHandler(s.service)

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Neo4j Hyperstructure Visualisation API"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/process-text", ingestHandler.ProcessText)
		api.GET("/process-text/stream", ingestHandler.ProcessTextStream)

		api.POST("/hyperedge/add", ingestHandler.AddHyperedge)
		api.GET("/hyperedge/extract_structured_data", retrieveHandler.ExtractStructuredData)

		api.GET("/hyperstructure/data", retrieveHandler.HyperstructureData)
		api.POST("/hyperstructure/clear", ingestHandler.Clear)

		api.POST("/query/ask", queryHandler.Ask)
		api.POST("/query/ask_multi", queryHandler.AskMulti)
	}
}

// Router returns the configured router; Setup must have run.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving HTTP until the server stops or fails.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
