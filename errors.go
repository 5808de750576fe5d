package rarity

import "fmt"

// ErrorKind classifies a GraphError. Construction and compilation errors are
// the only errors this package ever returns to a caller — see spec §7.
type ErrorKind int

const (
	// ReservedName: the caller tried to register A_IN_NODE or A_OUT_NODE.
	ReservedName ErrorKind = iota
	// RepeatedName: a node with this name is already registered.
	RepeatedName
	// UnknownName: a link or tap names no registered node.
	UnknownName
	// LinkedSource: an audio/message source endpoint is already the source of
	// a link that forbids further fan-out (currently unused — sources fan out
	// freely via AudioClone/MessageClone; kept for taxonomy completeness).
	LinkedSource
	// LinkedTarget: the target already has a link bound that a tap would
	// duplicate, or a second exclusive binding was attempted.
	LinkedTarget
	// InvalidLinkSource: from does not produce the kind of edge requested.
	InvalidLinkSource
	// InvalidLinkTarget: to does not consume the kind of edge requested.
	InvalidLinkTarget
	// LinkIsTapped: the edge already carries a tap; taps and re-linking the
	// same (from, to) pair are mutually exclusive operations on one edge.
	LinkIsTapped
	// TapIsLinked: AddTap was called on an edge that was never declared with
	// AddAudioLink/AddMessageLink.
	TapIsLinked
	// TappedTarget: the same tap target was registered twice on one edge.
	TappedTarget
	// InvalidTapTarget: the tap target is one of the tapped edge's own
	// endpoints.
	InvalidTapTarget
	// Cycle: the declared audio or message links contain a cycle.
	Cycle
)

func (k ErrorKind) String() string {
	switch k {
	case ReservedName:
		return "ReservedName"
	case RepeatedName:
		return "RepeatedName"
	case UnknownName:
		return "UnknownName"
	case LinkedSource:
		return "LinkedSource"
	case LinkedTarget:
		return "LinkedTarget"
	case InvalidLinkSource:
		return "InvalidLinkSource"
	case InvalidLinkTarget:
		return "InvalidLinkTarget"
	case LinkIsTapped:
		return "LinkIsTapped"
	case TapIsLinked:
		return "TapIsLinked"
	case TappedTarget:
		return "TappedTarget"
	case InvalidTapTarget:
		return "InvalidTapTarget"
	case Cycle:
		return "Cycle"
	default:
		return "Unknown"
	}
}

// GraphError is returned by graph construction and compilation. It is never
// returned from Process — misuse there is a programmer bug, not a recoverable
// error (spec §7).
type GraphError struct {
	Kind ErrorKind
	Name string // primary offending name
	Name2 string // secondary name, set for two-sided taxonomy entries
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case ReservedName:
		return fmt.Sprintf("node name %q is reserved, use another name", e.Name)
	case RepeatedName:
		return fmt.Sprintf("node name %q is already in use", e.Name)
	case UnknownName:
		return fmt.Sprintf("node name %q not found", e.Name)
	case LinkedSource:
		return fmt.Sprintf("link source %q already linked", e.Name)
	case LinkedTarget:
		return fmt.Sprintf("link target %q already linked", e.Name)
	case InvalidLinkSource:
		return fmt.Sprintf("%q is not a link source", e.Name)
	case InvalidLinkTarget:
		return fmt.Sprintf("%q is not a link target", e.Name)
	case LinkIsTapped:
		return fmt.Sprintf("%s -> %s is already tapped", e.Name, e.Name2)
	case TapIsLinked:
		return fmt.Sprintf("%s -> %s is not a declared link", e.Name, e.Name2)
	case TappedTarget:
		return fmt.Sprintf("%q already tapped on this edge", e.Name)
	case InvalidTapTarget:
		return fmt.Sprintf("%q is not a tap target", e.Name)
	case Cycle:
		return fmt.Sprintf("link graph contains a cycle at %q", e.Name)
	default:
		return "graph error"
	}
}

// Is reports whether target is a *GraphError with the same Kind, so callers
// can write errors.Is(err, &rarity.GraphError{Kind: rarity.UnknownName}).
func (e *GraphError) Is(target error) bool {
	other, ok := target.(*GraphError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func errReservedName(name string) error   { return &GraphError{Kind: ReservedName, Name: name} }
func errRepeatedName(name string) error   { return &GraphError{Kind: RepeatedName, Name: name} }
func errUnknownName(name string) error    { return &GraphError{Kind: UnknownName, Name: name} }
func errInvalidLinkSource(name string) error {
	return &GraphError{Kind: InvalidLinkSource, Name: name}
}
func errInvalidLinkTarget(name string) error {
	return &GraphError{Kind: InvalidLinkTarget, Name: name}
}
func errLinkedTarget(name string) error { return &GraphError{Kind: LinkedTarget, Name: name} }
func errLinkIsTapped(from, to string) error {
	return &GraphError{Kind: LinkIsTapped, Name: from, Name2: to}
}
func errTapIsLinked(from, to string) error {
	return &GraphError{Kind: TapIsLinked, Name: from, Name2: to}
}
func errTappedTarget(name string) error    { return &GraphError{Kind: TappedTarget, Name: name} }
func errInvalidTapTarget(name string) error {
	return &GraphError{Kind: InvalidTapTarget, Name: name}
}
func errCycle(name string) error { return &GraphError{Kind: Cycle, Name: name} }
