// Package pattern compiles structural patterns written in a target language's
// own concrete syntax into pattern trees the matcher can unify against a
// syntax tree.
//
// Metavariables stand for parts of the code:
//
//	$NAME     matches exactly one node and binds it (Single capture)
//	$$$NAME   matches zero or more consecutive siblings (Sequence capture)
//	$_        matches one node without binding it
//	$$$       matches zero or more siblings without binding them
//
// Names are upper case letters, digits and underscores; names starting with
// an underscore never bind.
package pattern

import (
	"fmt"
	"strings"
)

// Arity is the number of sibling nodes a capture consumes.
type Arity int

// Capture arities.
const (
	Single Arity = iota + 1
	Sequence
)

func (a Arity) String() string {
	switch a {
	case Single:
		return "single"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("Arity(%d)", int(a))
	}
}

// Node is one element of a pattern tree: *Literal, *Capture, *Any or *Alternation.
type Node interface {
	patternNode()
}

// Literal matches a syntax node of the same kind. A leaf literal also requires
// identical source text; an inner literal matches its children pairwise
// unless Wildcard is set, in which case any children are accepted.
type Literal struct {
	Kind     string
	Text     string
	Children []Node
	Wildcard bool
}

// Capture binds the node (Single) or run of sibling nodes (Sequence) it
// matches to Name. An empty Name matches without binding.
type Capture struct {
	Name  string
	Arity Arity
}

// Any matches any single node without binding.
type Any struct{}

// Alternation matches when any member matches; members are tried in order.
type Alternation struct {
	Members []Node
}

func (*Literal) patternNode()     {}
func (*Capture) patternNode()     {}
func (*Any) patternNode()         {}
func (*Alternation) patternNode() {}

// IsSequence reports whether n is a Sequence capture.
func IsSequence(n Node) bool {
	c, ok := n.(*Capture)

	return ok && c.Arity == Sequence
}

// CaptureInfo describes one named capture of a pattern.
type CaptureInfo struct {
	Name  string
	Arity Arity
}

// Pattern is a compiled pattern. It is immutable and safe for concurrent use.
type Pattern struct {
	Source   string
	Language string
	Root     Node
	Captures []CaptureInfo
}

// Binds reports whether every successful match of the pattern binds name.
// Under an alternation a name is guaranteed only when all members bind it.
func (p *Pattern) Binds(name string) bool {
	return binds(p.Root, name)
}

// Capture returns the capture with the given name.
func (p *Pattern) Capture(name string) (CaptureInfo, bool) {
	for _, info := range p.Captures {
		if info.Name == name {
			return info, true
		}
	}

	return CaptureInfo{}, false
}

func binds(n Node, name string) bool {
	switch node := n.(type) {
	case *Capture:
		return node.Name == name
	case *Literal:
		for _, child := range node.Children {
			if binds(child, name) {
				return true
			}
		}

		return false
	case *Alternation:
		if len(node.Members) == 0 {
			return false
		}

		for _, member := range node.Members {
			if !binds(member, name) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// collectCaptures lists named captures in first-occurrence pre-order.
func collectCaptures(root Node) []CaptureInfo {
	var (
		out  []CaptureInfo
		seen = make(map[string]bool)
	)

	var visit func(Node)

	visit = func(n Node) {
		switch node := n.(type) {
		case *Capture:
			if node.Name != "" && !seen[node.Name] {
				seen[node.Name] = true
				out = append(out, CaptureInfo{Name: node.Name, Arity: node.Arity})
			}
		case *Literal:
			for _, child := range node.Children {
				visit(child)
			}
		case *Alternation:
			for _, member := range node.Members {
				visit(member)
			}
		}
	}

	visit(root)

	return out
}

// String renders the pattern tree as an S-expression.
func (p *Pattern) String() string {
	var sb strings.Builder

	writeNode(&sb, p.Root)

	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	switch node := n.(type) {
	case *Literal:
		switch {
		case node.Wildcard:
			fmt.Fprintf(sb, "(%s ...)", node.Kind)
		case len(node.Children) == 0:
			fmt.Fprintf(sb, "%q", node.Text)
		default:
			sb.WriteString("(" + node.Kind)

			for _, child := range node.Children {
				sb.WriteString(" ")
				writeNode(sb, child)
			}

			sb.WriteString(")")
		}
	case *Capture:
		prefix := "$"
		if node.Arity == Sequence {
			prefix = "$$$"
		}

		sb.WriteString(prefix + node.Name)
	case *Any:
		sb.WriteString("$_")
	case *Alternation:
		sb.WriteString("(any")

		for _, member := range node.Members {
			sb.WriteString(" ")
			writeNode(sb, member)
		}

		sb.WriteString(")")
	}
}
