package syncengine

import "github.com/landkeeper/engine/pkg/statetree"

// DiffNodes walks prev and next (both projections for the same recipient)
// in lockstep and returns the patch stream needed to transform prev into
// next, in pre-order by canonical path.
func DiffNodes(prev, next *statetree.Node) []Patch {
	var patches []Patch
	diffNode(nil, prev, next, &patches)
	return patches
}

func diffNode(path []string, prev, next *statetree.Node, out *[]Patch) {
	if prev == nil && next == nil {
		return
	}
	if prev == nil {
		// Whole subtree newly visible to this recipient: emit a set per
		// field of next so the cache ends up fully populated.
		for _, f := range next.Schema().Fields() {
			v, ok := next.Get(f.Name)
			if !ok {
				continue
			}
			emitSet(append(path, f.Name), v, out)
		}
		return
	}
	if next == nil {
		for _, f := range prev.Schema().Fields() {
			if _, ok := prev.Get(f.Name); ok {
				*out = append(*out, Patch{Path: append(append([]string(nil), path...), f.Name), Op: OpDelete})
			}
		}
		return
	}

	schema := next.Schema()
	for _, f := range schema.Fields() {
		fieldPath := append(append([]string(nil), path...), f.Name)
		pv, pok := prev.Get(f.Name)
		nv, nok := next.Get(f.Name)
		switch {
		case !pok && !nok:
			continue
		case !pok && nok:
			emitSet(fieldPath, nv, out)
		case pok && !nok:
			*out = append(*out, Patch{Path: fieldPath, Op: OpDelete})
		default:
			diffValue(fieldPath, pv, nv, out)
		}
	}
}

// diffValue dispatches by kind: terminals compare by equality; mappings
// iterate the sorted union of keys; ordered lists are index-aligned with a
// tail add/delete for length changes. There is no longest-common-subsequence
// optimization; simplicity wins over a minimal patch for list reorders.
func diffValue(path []string, prev, next statetree.Value, out *[]Patch) {
	if prev.Kind() == statetree.KindNode && next.Kind() == statetree.KindNode {
		pn, _ := prev.AsNode()
		nn, _ := next.AsNode()
		diffNode(path, pn, nn, out)
		return
	}
	if prev.Kind() == statetree.KindMap && next.Kind() == statetree.KindMap {
		diffMap(path, prev, next, out)
		return
	}
	if prev.Kind() == statetree.KindList && next.Kind() == statetree.KindList {
		diffList(path, prev, next, out)
		return
	}
	if !prev.Equal(next) {
		emitSet(path, next, out)
	}
}

func diffMap(path []string, prev, next statetree.Value, out *[]Patch) {
	pm, _ := prev.AsMap()
	nm, _ := next.AsMap()

	keys := make(map[string]struct{}, len(pm)+len(nm))
	for k := range pm {
		keys[k] = struct{}{}
	}
	for k := range nm {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sortStrings(sorted)

	for _, k := range sorted {
		kp := append(append([]string(nil), path...), k)
		pv, pok := pm[k]
		nv, nok := nm[k]
		switch {
		case pok && !nok:
			*out = append(*out, Patch{Path: kp, Op: OpDelete})
		case !pok && nok:
			*out = append(*out, Patch{Path: kp, Op: OpAdd, Value: nv})
		default:
			diffValue(kp, pv, nv, out)
		}
	}
}

func diffList(path []string, prev, next statetree.Value, out *[]Patch) {
	pl, _ := prev.AsList()
	nl, _ := next.AsList()

	minLen := len(pl)
	if len(nl) < minLen {
		minLen = len(nl)
	}
	for i := 0; i < minLen; i++ {
		ip := append(append([]string(nil), path...), indexSegment(i))
		diffValue(ip, pl[i], nl[i], out)
	}
	switch {
	case len(nl) > len(pl):
		for i := len(pl); i < len(nl); i++ {
			ip := append(append([]string(nil), path...), indexSegment(i))
			*out = append(*out, Patch{Path: ip, Op: OpAdd, Value: nl[i]})
		}
	case len(pl) > len(nl):
		for i := len(nl); i < len(pl); i++ {
			ip := append(append([]string(nil), path...), indexSegment(i))
			*out = append(*out, Patch{Path: ip, Op: OpDelete})
		}
	}
}

func emitSet(path []string, v statetree.Value, out *[]Patch) {
	*out = append(*out, Patch{Path: append([]string(nil), path...), Op: OpSet, Value: v})
}
