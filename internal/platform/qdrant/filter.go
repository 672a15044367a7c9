package qdrant

// translateFilter converts a flat equality filter ({"domain": "general"})
// into qdrant's must/match form. Nil or empty filters translate to nil so
// the query body omits the filter key entirely.
func translateFilter(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]any, 0, len(filter))
	for key, val := range filter {
		if key == "" || val == nil {
			continue
		}
		must = append(must, matchCondition(key, val))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchCondition(key string, val any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": val},
	}
}
