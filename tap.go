package rarity

// AddTap attaches target as an extra, read-only consumer of the messages
// flowing along an already-declared message link from -> to, without
// altering that link's own delivery to `to`. target receives its own
// independent copy of every message the edge carries, addressed and popped
// exactly as `to` would see it.
//
// The edge must already exist (declared with AddMessageLink/
// AddMessageLinkPort) before it can be tapped, and the same target can only
// be tapped onto a given edge once.
func (g *Graph) AddTap(from, to, target string) error {
	edge := [2]string{from, to}
	for _, name := range []string{from, to, target} {
		if _, ok := g.nodes[name]; !ok {
			return errUnknownName(name)
		}
	}
	if !g.hasMessageLink(from, to) {
		return errTapIsLinked(from, to)
	}
	if target == from || target == to {
		return errInvalidTapTarget(target)
	}
	if g.tapTargets[edge] == nil {
		g.tapTargets[edge] = make(map[string]bool)
	}
	if g.tapTargets[edge][target] {
		return errTappedTarget(target)
	}
	g.tapTargets[edge][target] = true
	g.tappedEdges[edge] = true
	g.taps = append(g.taps, tapRecord{from: from, to: to, target: target})
	return nil
}

func (g *Graph) hasMessageLink(from, to string) bool {
	for _, l := range g.messageLinks {
		if l.from == from && l.to == to {
			return true
		}
	}
	return false
}
