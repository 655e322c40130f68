package elasticsearch

import (
	"github.com/postcodecheck/addresscleaner/internal/query"
)

// translateQuery converts the engine-neutral query tree into Elasticsearch
// query DSL. Bool semantics carry over unchanged: without must clauses at
// least one should clause has to match.
func translateQuery(q *query.Bool) map[string]interface{} {
	return translateClause(q)
}

func translateClause(c query.Clause) map[string]interface{} {
	switch c := c.(type) {
	case *query.Bool:
		body := map[string]interface{}{}
		if len(c.Must) > 0 {
			body["must"] = translateClauses(c.Must)
		}
		if len(c.Should) > 0 {
			body["should"] = translateClauses(c.Should)
		}
		withBoost(body, c.Boost)
		return map[string]interface{}{"bool": body}

	case query.Term:
		body := map[string]interface{}{"value": c.Value}
		withBoost(body, c.Boost)
		return map[string]interface{}{
			"term": map[string]interface{}{c.Field: body},
		}

	case query.Fuzzy:
		body := map[string]interface{}{
			"value":     c.Value,
			"fuzziness": c.MaxEdits,
		}
		withBoost(body, c.Boost)
		return map[string]interface{}{
			"fuzzy": map[string]interface{}{c.Field: body},
		}

	case query.Match:
		body := map[string]interface{}{
			"query":            query.Escape(c.Text),
			"default_field":    c.Field,
			"default_operator": "OR",
		}
		withBoost(body, c.Boost)
		return map[string]interface{}{"query_string": body}

	case query.Range:
		body := map[string]interface{}{}
		if c.Gte != nil {
			body["gte"] = *c.Gte
		}
		if c.Lte != nil {
			body["lte"] = *c.Lte
		}
		withBoost(body, c.Boost)
		return map[string]interface{}{
			"range": map[string]interface{}{c.Field: body},
		}
	}

	// Unknown clauses never match.
	return map[string]interface{}{"match_none": map[string]interface{}{}}
}

func translateClauses(clauses []query.Clause) []interface{} {
	out := make([]interface{}, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, translateClause(c))
	}
	return out
}

func withBoost(body map[string]interface{}, boost float64) {
	if boost > 0 && boost != 1 {
		body["boost"] = boost
	}
}
