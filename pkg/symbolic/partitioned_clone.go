package symbolic

import "github.com/symbion/symck/pkg/formula"

// Clone returns an independent deep copy of s. PartitionedStore carries no
// wire format of its own (it is a --partitioned alternative to Store, never
// part of the state blob), so Clone copies each field directly instead.
func (s *PartitionedStore) Clone() *PartitionedStore {
	out := &PartitionedStore{
		segmentsMapping: append([]uint16(nil), s.segmentsMapping...),
		fstUnusedID:     s.fstUnusedID,
		groups:          make(map[int]*dependencyGroup, len(s.groups)),
		dependencyMap:   make(map[formula.Ident]int, len(s.dependencyMap)),
		nextGroupID:     s.nextGroupID,
	}
	out.generations = make([][]uint16, len(s.generations))
	for i, g := range s.generations {
		out.generations[i] = append([]uint16(nil), g...)
	}
	out.bitWidths = make([][]uint8, len(s.bitWidths))
	for i, bw := range s.bitWidths {
		out.bitWidths[i] = append([]uint8(nil), bw...)
	}
	for id, g := range s.groups {
		ng := newDependencyGroup()
		for v := range g.vars {
			ng.vars[v] = struct{}{}
		}
		ng.pathCondition = append([]formula.Formula(nil), g.pathCondition...)
		ng.definitions = append([]formula.Definition(nil), g.definitions...)
		out.groups[id] = ng
	}
	for id, gid := range s.dependencyMap {
		out.dependencyMap[id] = gid
	}
	return out
}
