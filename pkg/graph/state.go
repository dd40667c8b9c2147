package graph

import (
	"fmt"
	"strings"

	"github.com/soundprediction/chronotope/pkg/cypher"
	"github.com/soundprediction/chronotope/pkg/types"
)

// locatorLines renders the MATCH block that resolves a fact reference to a
// hyperedge by relation plus exact subject and object sets. The set test is
// collected DISTINCT ids with size equality and mutual containment; facts
// without objects only match hyperedges with no object connections. carry
// lists the variables that must survive into the block.
func locatorLines(carry, alias, prefix string, ref types.FactRef, params map[string]any) []string {
	relParam := prefix + "_rel"
	subjParam := prefix + "_subjs"
	objParam := prefix + "_objs"
	params[relParam] = ref.RelationType
	params[subjParam] = stringList(ref.Subjects)
	params[objParam] = stringList(ref.Objects)

	withVars := alias
	if carry != "" {
		withVars = carry + ", " + alias
	}

	var lines []string
	if carry != "" {
		lines = append(lines, "WITH "+carry)
	}
	lines = append(lines,
		fmt.Sprintf("MATCH (%s:Hyperedge {relation_type: $%s})", alias, relParam),
		fmt.Sprintf("MATCH (%[1]s)-[:CONNECTS {role: 'subject'}]->(%[1]s_s:Node)", alias),
		fmt.Sprintf("WITH %s, collect(DISTINCT %s_s.id) AS %s_subjIds", withVars, alias, alias),
		fmt.Sprintf("WHERE size(%s_subjIds) = %d", alias, len(ref.Subjects)),
		fmt.Sprintf("  AND all(x IN %s_subjIds WHERE x IN $%s)", alias, subjParam),
		fmt.Sprintf("  AND all(x IN $%s WHERE x IN %s_subjIds)", subjParam, alias))

	if len(ref.Objects) > 0 {
		lines = append(lines,
			fmt.Sprintf("MATCH (%[1]s)-[:CONNECTS {role: 'object'}]->(%[1]s_o:Node)", alias),
			fmt.Sprintf("WITH %s, %s_subjIds, collect(DISTINCT %s_o.id) AS %s_objIds", withVars, alias, alias, alias),
			fmt.Sprintf("WHERE size(%s_objIds) = %d", alias, len(ref.Objects)),
			fmt.Sprintf("  AND all(x IN %s_objIds WHERE x IN $%s)", alias, objParam),
			fmt.Sprintf("  AND all(x IN $%s WHERE x IN %s_objIds)", objParam, alias))
	} else {
		lines = append(lines,
			fmt.Sprintf("  AND NOT EXISTS((%s)-[:CONNECTS {role: 'object'}]->())", alias))
	}
	return lines
}

// BuildStateEvent renders the statement for one state-change event: locate
// the affected hyperedge, create the event node with an AFFECTS_FACT edge,
// then wire each cause with an inbound CAUSES_STATE edge, each effect with
// an outbound one, and every extra precondition with REQUIRES_STATE. All
// boolean state flags are interpolated as literals.
func BuildStateEvent(sf types.StateFact) (Statement, error) {
	if err := sf.Validate(); err != nil {
		return Statement{}, err
	}

	params := map[string]any{}
	var parts []string

	parts = append(parts, locatorLines("", "h", "affected", sf.AffectedFact, params)...)
	parts = append(parts,
		fmt.Sprintf("CREATE (sce:StateChangeEvent {id: '%s'})", cypher.StateEventID()),
		"CREATE (sce)-[:AFFECTS_FACT]->(h)")

	for gi, group := range sf.CausedBy {
		for ci, cause := range group {
			alias := fmt.Sprintf("hc_%d_%d", gi, ci)
			prefix := fmt.Sprintf("cause_%d_%d", gi, ci)
			parts = append(parts, locatorLines("sce", alias, prefix, cause.FactRef, params)...)
			parts = append(parts,
				fmt.Sprintf("CREATE (%s)-[:CAUSES_STATE {required_state: %t}]->(sce)", alias, cause.TriggeredByState))
		}
	}

	for ei, effect := range sf.Causes {
		alias := fmt.Sprintf("he_%d", ei)
		prefix := fmt.Sprintf("effect_%d", ei)
		parts = append(parts, locatorLines("sce", alias, prefix, effect.FactRef, params)...)
		parts = append(parts,
			fmt.Sprintf("CREATE (sce)-[:CAUSES_STATE {triggers_state: %t}]->(%s)", effect.TriggersState, alias))

		for ri, req := range effect.AdditionalRequiredStates {
			reqAlias := fmt.Sprintf("req_%d_%d", ei, ri)
			reqPrefix := fmt.Sprintf("reqstate_%d_%d", ei, ri)
			parts = append(parts, locatorLines("sce, "+alias, reqAlias, reqPrefix, req.FactRef, params)...)
			parts = append(parts,
				fmt.Sprintf("CREATE (sce)-[:REQUIRES_STATE {required_state: %t}]->(%s)", req.State, reqAlias))
		}
	}

	return Statement{Query: strings.Join(parts, "\n"), Params: params}, nil
}
