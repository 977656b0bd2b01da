package config

import (
	"cmp"
	"slices"
	"strings"
)

// stages orders module namespaces by the point in startup where they are
// needed: stores are connected before the providers that may summarize into
// them, and channels come last so nothing is delivered into an unwired core.
var stages = map[string]int{
	"memory":   0,
	"provider": 1,
	"gateway":  2,
	"channel":  3,
}

func stageOf(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if s, ok := stages[ns]; ok {
		return s
	}
	return len(stages)
}

// Resolve lists the configured module IDs in load order: by stage, then
// alphabetically within a stage.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(stageOf(a), stageOf(b)), strings.Compare(a, b))
	})
	return ids
}
