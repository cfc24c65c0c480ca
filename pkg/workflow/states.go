package workflow

import (
	"slices"

	"mercator-hq/strata/pkg/record"
)

// StatesFromConfig builds the archive state table of a configuration's
// workflow section. Kinds named in cfg replace their defaults; the other
// archivable kinds keep DefaultArchiveStates.
func StatesFromConfig(cfg map[string][]string) map[record.Kind][]string {
	table := DefaultArchiveStates()
	for kind, states := range cfg {
		table[record.Kind(kind)] = slices.Clone(states)
	}
	return table
}
