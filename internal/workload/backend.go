package workload

import (
	"fmt"
	"math"
	"slices"
)

// Element is a value stored in a container backend. Key folds the value
// into an observation so that reads cannot be optimized away.
type Element interface {
	Key() uint64
}

// Small is a 4-byte element.
type Small uint32

func (s Small) Key() uint64 { return uint64(s) }

// Point is a 24-byte element.
type Point struct{ X, Y, Z float64 }

func (p Point) Key() uint64 {
	return math.Float64bits(p.X) ^ math.Float64bits(p.Y)<<1 ^ math.Float64bits(p.Z)<<2
}

// Large is a 256-byte element.
type Large struct{ Words [32]uint64 }

func (l Large) Key() uint64 { return l.Words[0] ^ l.Words[31] }

// Backend is the capability set every container under test provides.
type Backend[T Element] interface {
	Push(v T)
	Clear()
	Len() int
	Iterate(visit func(T))
	Copy() Backend[T]
}

// Backend kinds.
const (
	Growable     = "Growable"
	Preallocated = "Preallocated"
	Fixed        = "Fixed"
	Inlined      = "Inlined"
	Linked       = "Linked"
)

// BackendKinds lists the kinds in report order.
var BackendKinds = []string{Growable, Preallocated, Fixed, Inlined, Linked}

// inlineCapacity is how many elements Inlined keeps before spilling.
const inlineCapacity = 16

// NewBackend returns an empty backend of the given kind sized for
// capacity elements. Fixed can never hold more than capacity.
func NewBackend[T Element](kind string, capacity int) (Backend[T], error) {
	switch kind {
	case Growable:
		return &growable[T]{}, nil
	case Preallocated:
		return &growable[T]{items: make([]T, 0, capacity)}, nil
	case Fixed:
		return &fixed[T]{items: make([]T, capacity)}, nil
	case Inlined:
		return &inlined[T]{}, nil
	case Linked:
		return &linked[T]{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// growable is a plain slice. Preallocated is the same type created with
// its final capacity.
type growable[T Element] struct {
	items []T
}

func (g *growable[T]) Push(v T) { g.items = append(g.items, v) }
func (g *growable[T]) Clear()   { g.items = g.items[:0] }
func (g *growable[T]) Len() int { return len(g.items) }

func (g *growable[T]) Iterate(visit func(T)) {
	for _, v := range g.items {
		visit(v)
	}
}

func (g *growable[T]) Copy() Backend[T] {
	return &growable[T]{items: slices.Clone(g.items)}
}

// fixed writes into storage allocated once; it never grows.
type fixed[T Element] struct {
	items []T
	n     int
}

func (f *fixed[T]) Push(v T) {
	if f.n == len(f.items) {
		panic(fmt.Sprintf("fixed backend full at %d elements", f.n))
	}
	f.items[f.n] = v
	f.n++
}

func (f *fixed[T]) Clear()   { f.n = 0 }
func (f *fixed[T]) Len() int { return f.n }

func (f *fixed[T]) Iterate(visit func(T)) {
	for _, v := range f.items[:f.n] {
		visit(v)
	}
}

func (f *fixed[T]) Copy() Backend[T] {
	c := &fixed[T]{items: make([]T, len(f.items)), n: f.n}
	copy(c.items, f.items[:f.n])
	return c
}

// inlined keeps the first inlineCapacity elements in the struct itself and
// spills the rest to the heap.
type inlined[T Element] struct {
	local [inlineCapacity]T
	n     int
	spill []T
}

func (s *inlined[T]) Push(v T) {
	if s.n < inlineCapacity {
		s.local[s.n] = v
		s.n++
		return
	}
	s.spill = append(s.spill, v)
}

func (s *inlined[T]) Clear() {
	s.n = 0
	s.spill = s.spill[:0]
}

func (s *inlined[T]) Len() int { return s.n + len(s.spill) }

func (s *inlined[T]) Iterate(visit func(T)) {
	for _, v := range s.local[:s.n] {
		visit(v)
	}
	for _, v := range s.spill {
		visit(v)
	}
}

func (s *inlined[T]) Copy() Backend[T] {
	c := &inlined[T]{local: s.local, n: s.n}
	if len(s.spill) > 0 {
		c.spill = slices.Clone(s.spill)
	}
	return c
}

type node[T Element] struct {
	value T
	next  *node[T]
}

// linked is a singly linked list with one allocation per element.
type linked[T Element] struct {
	head, tail *node[T]
	n          int
}

func (l *linked[T]) Push(v T) {
	nd := &node[T]{value: v}
	if l.tail == nil {
		l.head = nd
	} else {
		l.tail.next = nd
	}
	l.tail = nd
	l.n++
}

func (l *linked[T]) Clear() {
	l.head, l.tail, l.n = nil, nil, 0
}

func (l *linked[T]) Len() int { return l.n }

func (l *linked[T]) Iterate(visit func(T)) {
	for nd := l.head; nd != nil; nd = nd.next {
		visit(nd.value)
	}
}

func (l *linked[T]) Copy() Backend[T] {
	c := &linked[T]{}
	l.Iterate(c.Push)
	return c
}
