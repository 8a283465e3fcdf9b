package node

import "fmt"

// EdgeKind discriminates the ways control can leave a node.
type EdgeKind int

const (
	// EdgeContinue advances to the next node in document order.
	EdgeContinue EdgeKind = iota
	// EdgeGoto jumps to an explicit node index.
	EdgeGoto
	// EdgeStop ends the owning list.
	EdgeStop
)

// Edge is a "what runs next" descriptor. Nodes compute it; the interpreter
// only follows it.
type Edge struct {
	Kind EdgeKind
	// Index is the jump target, meaningful only for EdgeGoto.
	Index int
}

// ContinueEdge is the default successor descriptor.
var ContinueEdge = Edge{Kind: EdgeContinue}

// StopEdge ends the owning list.
var StopEdge = Edge{Kind: EdgeStop}

// GotoEdge jumps to the node at index.
func GotoEdge(index int) Edge {
	return Edge{Kind: EdgeGoto, Index: index}
}

func (e Edge) String() string {
	switch e.Kind {
	case EdgeContinue:
		return "continue"
	case EdgeGoto:
		return fmt.Sprintf("goto(%d)", e.Index)
	case EdgeStop:
		return "stop"
	default:
		return fmt.Sprintf("edge(%d)", int(e.Kind))
	}
}
