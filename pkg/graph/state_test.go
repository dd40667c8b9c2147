package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope/pkg/types"
)

func TestBuildStateEvent(t *testing.T) {
	sf := types.StateFact{
		FactType: types.FactTypeStateChange,
		AffectedFact: types.FactRef{
			Subjects:     []string{"factory"},
			Objects:      []string{"cars"},
			RelationType: "produces",
		},
		CausedBy: [][]types.CauseRef{{
			{
				FactRef:          types.FactRef{Subjects: []string{"strike"}, RelationType: "ends"},
				TriggeredByState: true,
			},
		}},
		Causes: []types.EffectRef{{
			FactRef:       types.FactRef{Subjects: []string{"economy"}, Objects: []string{"growth"}, RelationType: "shows"},
			TriggersState: true,
			AdditionalRequiredStates: []types.RequiredState{{
				FactRef: types.FactRef{Subjects: []string{"market"}, RelationType: "opens"},
				State:   false,
			}},
		}},
	}

	stmt, err := BuildStateEvent(sf)
	require.NoError(t, err)

	// Affected fact locator with exact set matching.
	assert.Contains(t, stmt.Query, "MATCH (h:Hyperedge {relation_type: $affected_rel})")
	assert.Contains(t, stmt.Query, "WHERE size(h_subjIds) = 1")
	assert.Contains(t, stmt.Query, "all(x IN h_subjIds WHERE x IN $affected_subjs)")
	assert.Contains(t, stmt.Query, "collect(DISTINCT h_o.id) AS h_objIds")
	assert.Equal(t, "produces", stmt.Params["affected_rel"])
	assert.Equal(t, []string{"factory"}, stmt.Params["affected_subjs"])
	assert.Equal(t, []string{"cars"}, stmt.Params["affected_objs"])

	// Event node id is minted fresh and interpolated.
	assert.Contains(t, stmt.Query, "CREATE (sce:StateChangeEvent {id: 'sce_")
	assert.Contains(t, stmt.Query, "CREATE (sce)-[:AFFECTS_FACT]->(h)")

	// Intransitive cause carries the no-object guard and an inbound edge.
	assert.Contains(t, stmt.Query, "NOT EXISTS((hc_0_0)-[:CONNECTS {role: 'object'}]->())")
	assert.Contains(t, stmt.Query, "CREATE (hc_0_0)-[:CAUSES_STATE {required_state: true}]->(sce)")
	assert.Equal(t, "ends", stmt.Params["cause_0_0_rel"])

	// Effect gets an outbound edge plus its extra precondition.
	assert.Contains(t, stmt.Query, "CREATE (sce)-[:CAUSES_STATE {triggers_state: true}]->(he_0)")
	assert.Contains(t, stmt.Query, "WITH sce, he_0")
	assert.Contains(t, stmt.Query, "CREATE (sce)-[:REQUIRES_STATE {required_state: false}]->(req_0_0)")
	assert.Equal(t, "opens", stmt.Params["reqstate_0_0_rel"])
}

func TestBuildStateEventCarriesEventBetweenLocators(t *testing.T) {
	sf := types.StateFact{
		AffectedFact: types.FactRef{Subjects: []string{"dam"}, RelationType: "holds"},
		CausedBy: [][]types.CauseRef{{
			{FactRef: types.FactRef{Subjects: []string{"rain"}, RelationType: "stops"}},
			{FactRef: types.FactRef{Subjects: []string{"river"}, RelationType: "recedes"}},
		}},
	}

	stmt, err := BuildStateEvent(sf)
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "WITH sce\nMATCH (hc_0_0:Hyperedge")
	assert.Contains(t, stmt.Query, "WITH sce\nMATCH (hc_0_1:Hyperedge")
	assert.Contains(t, stmt.Query, "CREATE (hc_0_1)-[:CAUSES_STATE {required_state: false}]->(sce)")
}

func TestBuildStateEventRejectsInvalid(t *testing.T) {
	_, err := BuildStateEvent(types.StateFact{AffectedFact: types.FactRef{RelationType: "melts"}})
	assert.ErrorIs(t, err, types.ErrNoSubjects)
}
