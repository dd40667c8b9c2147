// Package chronotope turns natural language into a spatiotemporal hypergraph.
//
// Chronotope ingests free text, extracts temporal facts with a language
// model, resolves their location names into geometries and stores the result
// in Neo4j as a hypergraph: entity nodes joined by hyperedges that are valid
// in one or more spatiotemporal contexts. Facts are content-addressed, so
// re-ingesting the same statement converges on the same graph, and new
// statements about a known fact append to it instead of duplicating it.
//
// # Basic Usage
//
// Create a client from configuration and connect:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := chronotope.NewClient(cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Ingesting Text
//
// ProcessText runs the full pipeline: sentence splitting, canonical
// expansion, structured extraction, geocoding, graph writes and causal
// inference. Progress events report each stage per sentence:
//
//	result, err := client.ProcessText(ctx, text, 0, func(ev types.ProgressEvent) {
//		fmt.Printf("[%s] %s\n", ev.Stage, ev.Message)
//	})
//
// # Querying
//
// Ask answers a natural language question by letting the model call graph
// query tools and validating the result:
//
//	answer, err := client.Ask(ctx, "Who studied at MIT in 2020?", 3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(answer.Valid, answer.Descriptor)
//
// Structured queries go through the store directly, for example
// HyperstructureData for the visualisation payload or QueryFacts for
// filtered fact lists.
//
// # Server
//
// The pkg/server package exposes the same operations over HTTP, including a
// Server-Sent Events stream of pipeline progress. The chronotope command in
// cmd runs it.
package chronotope
