package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope/pkg/cypher"
	"github.com/soundprediction/chronotope/pkg/types"
)

func affectedRef() types.FactRef {
	return types.FactRef{
		Subjects:     []string{"John"},
		Objects:      []string{"MIT"},
		RelationType: "studies at",
	}
}

func TestBuildModificationRelationChange(t *testing.T) {
	m := types.Modification{
		FactType:       types.FactTypeModification,
		AffectedFact:   affectedRef(),
		ModifyFieldsTo: types.FieldChanges{RelationType: "graduated from"},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)

	assert.Contains(t, stmt.Query, "MATCH (h:Hyperedge {relation_type: $mod_rel})")
	assert.Contains(t, stmt.Query, "SET h.relation_type = $new_rel")
	assert.Equal(t, "studies at", stmt.Params["mod_rel"])
	assert.Equal(t, "graduated from", stmt.Params["new_rel"])
	assert.NotContains(t, stmt.Query, "VALID_IN")
	assert.NotContains(t, stmt.Query, "entity_count")
}

func TestBuildModificationTemporalOnly(t *testing.T) {
	m := types.Modification{
		AffectedFact: affectedRef(),
		ModifyFieldsTo: types.FieldChanges{
			TemporalIntervals: []types.TemporalInterval{
				{StartTime: strPtr("2019-09-01T00:00:00"), EndTime: strPtr("null")},
			},
		},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)

	assert.Contains(t, stmt.Query, "MATCH (h)-[:VALID_IN]->(c:Context)")
	assert.Contains(t, stmt.Query, "SET c.from_time = $new_from, c.to_time = null")
	assert.Equal(t, "2019-09-01T00:00:00", stmt.Params["new_from"])
	assert.NotContains(t, stmt.Params, "new_to")
}

func TestBuildModificationSpatialOnly(t *testing.T) {
	m := types.Modification{
		AffectedFact: affectedRef(),
		ModifyFieldsTo: types.FieldChanges{
			SpatialContexts: []types.SpatialContext{pointContext("Boston", -71.0589, 42.3601)},
		},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)

	assert.Contains(t, stmt.Query, "MATCH (h)-[:VALID_IN]->(c2:Context)")
	assert.Contains(t, stmt.Query, "c2.location_name = $sp_new_name")
	assert.Contains(t, stmt.Query, "c2.spatial_type = $sp_new_type")
	assert.Contains(t, stmt.Query, "c2.coordinates = point({longitude: -71.0589, latitude: 42.3601})")
	assert.Equal(t, "Boston", stmt.Params["sp_new_name"])
}

func TestBuildModificationCombinedRewiresContext(t *testing.T) {
	sc := pointContext("Boston", -71.0589, 42.3601)
	m := types.Modification{
		AffectedFact: affectedRef(),
		ModifyFieldsTo: types.FieldChanges{
			TemporalIntervals: []types.TemporalInterval{{StartTime: strPtr("2019-09-01T00:00:00")}},
			SpatialContexts:   []types.SpatialContext{sc},
		},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)

	start := "2019-09-01T00:00:00"
	ctxID := cypher.ContextID(&start, nil, "Boston", types.GeometryPoint, cypher.CoordinateSignature(&sc))
	assert.Contains(t, stmt.Query, "MERGE (new_ctx:Context {id: '"+ctxID+"'})")
	assert.Contains(t, stmt.Query, "ON CREATE SET new_ctx.from_time = '2019-09-01T00:00:00', new_ctx.to_time = null")
	assert.Contains(t, stmt.Query, "MERGE (h)-[:VALID_IN]->(new_ctx)")
	assert.Contains(t, stmt.Query, "OPTIONAL MATCH (h)-[r_old:VALID_IN]->(oldC:Context)")
	assert.Contains(t, stmt.Query, "DETACH DELETE oldC")
}

func TestBuildModificationRewiresRoles(t *testing.T) {
	m := types.Modification{
		AffectedFact: affectedRef(),
		ModifyFieldsTo: types.FieldChanges{
			Subjects: []string{"John", "Mary"},
			Objects:  []string{},
		},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)

	assert.Contains(t, stmt.Query, "OPTIONAL MATCH (h)-[r_sub:CONNECTS {role: 'subject'}]->(:Node)")
	assert.Contains(t, stmt.Query, "DELETE r_sub")
	assert.Contains(t, stmt.Query, "MERGE (ns_0:Node {id: $ns_0_id})")
	assert.Contains(t, stmt.Query, "CREATE (h)-[:CONNECTS {role: 'subject'}]->(ns_1)")
	assert.Equal(t, "Mary", stmt.Params["ns_1_id"])

	// An explicitly empty object list still detaches the old objects.
	assert.Contains(t, stmt.Query, "OPTIONAL MATCH (h)-[r_obj:CONNECTS {role: 'object'}]->(:Node)")
	assert.NotContains(t, stmt.Query, "no_0")

	assert.Contains(t, stmt.Query, "SET h.entity_count = ec")
}

func TestBuildModificationNilSlicesLeaveRolesAlone(t *testing.T) {
	m := types.Modification{
		AffectedFact:   affectedRef(),
		ModifyFieldsTo: types.FieldChanges{RelationType: "attends"},
	}

	stmt, err := BuildModification(m)
	require.NoError(t, err)
	assert.NotContains(t, stmt.Query, "r_sub")
	assert.NotContains(t, stmt.Query, "r_obj")
}

func TestBuildModificationRequiresChanges(t *testing.T) {
	_, err := BuildModification(types.Modification{AffectedFact: affectedRef()})
	assert.ErrorIs(t, err, ErrNoFieldChanges)
}

func TestBuildModificationRejectsInvalid(t *testing.T) {
	_, err := BuildModification(types.Modification{
		ModifyFieldsTo: types.FieldChanges{RelationType: "x"},
	})
	assert.ErrorIs(t, err, types.ErrNoSubjects)
}
