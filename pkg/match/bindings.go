package match

import (
	"slices"

	"github.com/Sumatoshi-tech/codemod/pkg/pattern"
	"github.com/Sumatoshi-tech/codemod/pkg/syntax"
)

// Binding is what one named capture matched: a single node, or a run of
// consecutive siblings (possibly empty) for a sequence capture.
type Binding struct {
	Name  string
	Arity pattern.Arity
	Nodes []*syntax.Node
}

// Text returns the exact source covered by the binding. A sequence renders
// from the start of its first node to the end of its last node, so the
// separators between elements are preserved; an empty sequence is "".
func (b Binding) Text() string {
	if len(b.Nodes) == 0 {
		return ""
	}

	first, last := b.Nodes[0], b.Nodes[len(b.Nodes)-1]

	tree := first.Tree()
	if tree == nil {
		return ""
	}

	return tree.Slice(first.Span.Start, last.Span.End)
}

// Span returns the byte range covered by the binding; ok is false for an
// empty sequence.
func (b Binding) Span() (syntax.Span, bool) {
	if len(b.Nodes) == 0 {
		return syntax.Span{}, false
	}

	return syntax.Span{Start: b.Nodes[0].Span.Start, End: b.Nodes[len(b.Nodes)-1].Span.End}, true
}

// Bindings maps capture names to what they matched, in first-occurrence order.
type Bindings struct {
	order  []string
	byName map[string]*Binding
	texts  map[string]string
}

// NewBindings returns an empty set of bindings.
func NewBindings() *Bindings {
	return &Bindings{
		byName: make(map[string]*Binding),
		texts:  make(map[string]string),
	}
}

// Len returns the number of bound names.
func (b *Bindings) Len() int {
	return len(b.order)
}

// Names returns the bound names in first-occurrence order.
func (b *Bindings) Names() []string {
	return slices.Clone(b.order)
}

// Get returns the binding for name.
func (b *Bindings) Get(name string) (Binding, bool) {
	binding, ok := b.byName[name]
	if !ok {
		return Binding{}, false
	}

	return *binding, true
}

// Text returns the source text bound to name.
func (b *Bindings) Text(name string) (string, bool) {
	text, ok := b.texts[name]

	return text, ok
}

// Texts returns every bound name with its text.
func (b *Bindings) Texts() map[string]string {
	out := make(map[string]string, len(b.texts))
	for name, text := range b.texts {
		out[name] = text
	}

	return out
}

// bind records nodes under name. A name seen before only succeeds when the
// new nodes have the same text as the first occurrence.
func (b *Bindings) bind(name string, arity pattern.Arity, nodes []*syntax.Node) bool {
	if name == "" {
		return true
	}

	binding := Binding{Name: name, Arity: arity, Nodes: nodes}
	text := binding.Text()

	if prev, ok := b.texts[name]; ok {
		return prev == text
	}

	b.order = append(b.order, name)
	b.byName[name] = &binding
	b.texts[name] = text

	return true
}

// mark returns a checkpoint for rollback.
func (b *Bindings) mark() int {
	return len(b.order)
}

// rollback forgets every name bound after the checkpoint.
func (b *Bindings) rollback(checkpoint int) {
	for _, name := range b.order[checkpoint:] {
		delete(b.byName, name)
		delete(b.texts, name)
	}

	b.order = b.order[:checkpoint]
}
