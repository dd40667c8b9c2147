// Package graph is the Neo4j store for the spatiotemporal hypergraph:
// content-addressed writes for temporal facts (with append-vs-create
// detection), state-change events and modifications, plus the read-side
// spatiotemporal queries. Every statement runs in its own session; the
// driver is safe for concurrent session creation.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/types"
)

var (
	ErrHyperedgeNotFound = errors.New("graph: hyperedge not found")
	ErrNotConnected      = errors.New("graph: not connected")
)

// Statement is a single parameterised Cypher statement. User-supplied
// strings travel as parameters; only structural fragments and deterministic
// ids are interpolated into the query text.
type Statement struct {
	Query  string
	Params map[string]any
}

// Store persists the hypergraph in Neo4j.
type Store struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewStore creates a store from the database configuration. The connection
// is not verified until Connect.
func NewStore(cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Store{client: client, database: database, logger: logger}, nil
}

// Connect verifies connectivity and bootstraps the schema.
func (s *Store) Connect(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	s.logger.Info("connected to neo4j", "database", s.database)
	return s.InitSchema(ctx)
}

// Close shuts down the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var schemaStatements = []string{
	"CREATE CONSTRAINT node_id_unique IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT hyperedge_id_unique IF NOT EXISTS FOR (h:Hyperedge) REQUIRE h.id IS UNIQUE",
	"CREATE CONSTRAINT context_id_unique IF NOT EXISTS FOR (c:Context) REQUIRE c.id IS UNIQUE",
	"CREATE INDEX node_type_index IF NOT EXISTS FOR (n:Node) ON (n.type)",
	"CREATE INDEX hyperedge_relation_index IF NOT EXISTS FOR (h:Hyperedge) ON (h.relation_type)",
	"CREATE INDEX context_spatial_index IF NOT EXISTS FOR (c:Context) ON (c.location_name)",
	"CREATE INDEX context_certainty_index IF NOT EXISTS FOR (c:Context) ON (c.certainty)",
	"CREATE INDEX context_coordinates_index IF NOT EXISTS FOR (c:Context) ON (c.coordinates)",
}

// InitSchema creates uniqueness constraints and secondary indexes. Failures
// are logged and skipped so a schema that already exists is not fatal.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.execWrite(ctx, Statement{Query: stmt}); err != nil {
			s.logger.Warn("schema statement failed (may already exist)", "error", err)
		}
	}
	return nil
}

func (s *Store) execWrite(ctx context.Context, stmt Statement) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

func (s *Store) readRecords(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*db.Record), nil
}

// WriteFact persists a temporal fact, either by appending to an existing
// hyperedge that matches one of the append criteria or by creating a fresh
// content-addressed hyperedge.
func (s *Store) WriteFact(ctx context.Context, fact types.Fact) error {
	if err := fact.Validate(); err != nil {
		return err
	}

	existing, err := s.FindAppendable(ctx, fact)
	if err != nil {
		return err
	}

	var stmt Statement
	if existing != nil {
		s.logger.Debug("appending to existing hyperedge",
			"hyperedge_id", existing.ID, "criterion", existing.Criterion)
		stmt = BuildAppend(existing, fact)
	} else {
		stmt, err = BuildCreateFact(fact)
		if err != nil {
			return err
		}
	}
	return s.execWrite(ctx, stmt)
}

// WriteStateFact persists a state-change event and its causation edges.
func (s *Store) WriteStateFact(ctx context.Context, sf types.StateFact) error {
	stmt, err := BuildStateEvent(sf)
	if err != nil {
		return err
	}
	return s.execWrite(ctx, stmt)
}

// WriteModification applies a retroactive correction to an existing
// hyperedge.
func (s *Store) WriteModification(ctx context.Context, m types.Modification) error {
	stmt, err := BuildModification(m)
	if err != nil {
		return err
	}
	return s.execWrite(ctx, stmt)
}

// AddHyperedge writes a prebuilt fact through the normal append-or-create
// path and returns a synthetic display id for the caller. The id identifies
// the request, not the stored node; the store's own ids are content-addressed.
func (s *Store) AddHyperedge(ctx context.Context, fact types.Fact) (string, error) {
	if err := s.WriteFact(ctx, fact); err != nil {
		return "", err
	}
	return SyntheticHyperedgeID(fact), nil
}

// SyntheticHyperedgeID derives a short display id from the fact's wire form.
func SyntheticHyperedgeID(fact types.Fact) string {
	raw, _ := json.Marshal(fact)
	h := fnv.New32a()
	h.Write(raw)
	return fmt.Sprintf("he_%08x", h.Sum32()%1000000)
}

// HyperedgeDetails is the full picture of one hyperedge: its properties,
// connected entity nodes annotated with their role, and validity contexts.
type HyperedgeDetails struct {
	Hyperedge map[string]any   `json:"hyperedge"`
	Nodes     []map[string]any `json:"nodes"`
	Contexts  []map[string]any `json:"contexts"`
}

// GetHyperedgeDetails fetches one hyperedge with its nodes and contexts.
func (s *Store) GetHyperedgeDetails(ctx context.Context, hyperedgeID string) (*HyperedgeDetails, error) {
	params := map[string]any{"id": hyperedgeID}

	recs, err := s.readRecords(ctx, "MATCH (h:Hyperedge {id: $id}) RETURN h", params)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrHyperedgeNotFound
	}
	details := &HyperedgeDetails{Hyperedge: nodeProps(recordValue(recs[0], "h"))}

	nodeRecs, err := s.readRecords(ctx, `
		MATCH (h:Hyperedge {id: $id})-[r:CONNECTS]->(n:Node)
		RETURN n, r.role AS role`, params)
	if err != nil {
		return nil, err
	}
	for _, rec := range nodeRecs {
		props := nodeProps(recordValue(rec, "n"))
		props["role"] = recordValue(rec, "role")
		details.Nodes = append(details.Nodes, props)
	}

	ctxRecs, err := s.readRecords(ctx, `
		MATCH (h:Hyperedge {id: $id})-[:VALID_IN]->(c:Context)
		RETURN c`, params)
	if err != nil {
		return nil, err
	}
	for _, rec := range ctxRecs {
		details.Contexts = append(details.Contexts, nodeProps(recordValue(rec, "c")))
	}
	return details, nil
}

// DeleteHyperedge removes a hyperedge. Its contexts are deleted only when
// no other hyperedge still claims them.
func (s *Store) DeleteHyperedge(ctx context.Context, hyperedgeID string) error {
	params := map[string]any{"id": hyperedgeID}
	if err := s.execWrite(ctx, Statement{Query: `
		MATCH (h:Hyperedge {id: $id})
		OPTIONAL MATCH (h)-[r:VALID_IN]->(c:Context)
		DELETE r
		WITH c
		WHERE c IS NOT NULL AND NOT (c)<-[:VALID_IN]-()
		DETACH DELETE c`, Params: params}); err != nil {
		return err
	}
	return s.execWrite(ctx, Statement{Query: `
		MATCH (h:Hyperedge {id: $id})
		DETACH DELETE h`, Params: params})
}

// Statistics are graph-wide node and relationship counts.
type Statistics struct {
	NodeCount       int64 `json:"node_count"`
	HyperedgeCount  int64 `json:"hyperedge_count"`
	ContextCount    int64 `json:"context_count"`
	StateEventCount int64 `json:"state_event_count"`
	ConnectsCount   int64 `json:"connects_count"`
	ValidInCount    int64 `json:"valid_in_count"`
}

// Statistics counts the main node and relationship types.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"MATCH (n:Node) RETURN count(n) AS count", &stats.NodeCount},
		{"MATCH (h:Hyperedge) RETURN count(h) AS count", &stats.HyperedgeCount},
		{"MATCH (c:Context) RETURN count(c) AS count", &stats.ContextCount},
		{"MATCH (sce:StateChangeEvent) RETURN count(sce) AS count", &stats.StateEventCount},
		{"MATCH ()-[r:CONNECTS]->() RETURN count(r) AS count", &stats.ConnectsCount},
		{"MATCH ()-[r:VALID_IN]->() RETURN count(r) AS count", &stats.ValidInCount},
	}
	for _, c := range counts {
		recs, err := s.readRecords(ctx, c.query, nil)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			if n, ok := recordValue(recs[0], "count").(int64); ok {
				*c.dest = n
			}
		}
	}
	return stats, nil
}

// Clear removes every node and relationship in the database.
func (s *Store) Clear(ctx context.Context) error {
	return s.execWrite(ctx, Statement{Query: "MATCH (n) DETACH DELETE n"})
}

func recordValue(rec *db.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}
