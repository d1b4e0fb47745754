package state

import (
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"slices"
	"strings"
)

var (
	ErrTableFull      = errors.New("non-storing table is full")
	ErrForeignAddress = errors.New("address is outside the DAG prefix")
)

const noSlot = -1

// NsNode is the root's record of one node of a DAG and the link to its
// parent. The parent is kept as an arena slot so that removals can be
// checked against every surviving record.
type NsNode struct {
	LinkId   [8]byte
	Lifetime uint32
	Dag      *Dag
	parent   int
	slot     int
	used     bool
}

// ReconstructAddress returns the global address of n, the DAG prefix followed by its link identifier.
func ReconstructAddress(n *NsNode) netip.Addr {
	var b [16]byte
	p := n.Dag.Prefix()
	copy(b[:8], p[:])
	copy(b[8:], n.LinkId[:])
	return netip.AddrFrom16(b)
}

func (n *NsNode) String() string {
	lt := "inf"
	if n.Lifetime != LifetimeInfinite {
		lt = fmt.Sprint(n.Lifetime)
	}
	return fmt.Sprintf("(node: %s, lifetime: %s)", ReconstructAddress(n), lt)
}

type nsKey struct {
	dag *Dag
	id  [8]byte
}

// NsTable holds the topology of the DAGs rooted at this node, as learnt from
// DAOs in non-storing mode. The table has a fixed capacity; it must only be
// accessed from a single goroutine.
type NsTable struct {
	nodes        []NsNode
	free         []int
	index        map[nsKey]int
	RemovalDelay uint32
}

func NewNsTable(capacity int, removalDelay uint32) *NsTable {
	t := &NsTable{
		nodes:        make([]NsNode, max(capacity, 0)),
		RemovalDelay: removalDelay,
	}
	t.Reset()
	return t
}

// Reset drops every record, e.g. when the root rejoins.
func (t *NsTable) Reset() {
	t.free = make([]int, 0, len(t.nodes))
	for i := len(t.nodes) - 1; i >= 0; i-- {
		t.nodes[i] = NsNode{parent: noSlot, slot: i}
		t.free = append(t.free, i)
	}
	t.index = make(map[nsKey]int, len(t.nodes))
}

// ResetDag drops every record belonging to dag.
func (t *NsTable) ResetDag(dag *Dag) {
	for i := range t.nodes {
		if t.nodes[i].used && t.nodes[i].Dag == dag {
			t.release(i)
		}
	}
}

func (t *NsTable) Count() int {
	return len(t.nodes) - len(t.free)
}

func (t *NsTable) Capacity() int {
	return len(t.nodes)
}

// All iterates over every record in slot order.
func (t *NsTable) All() iter.Seq[*NsNode] {
	return func(yield func(*NsNode) bool) {
		for i := range t.nodes {
			if t.nodes[i].used && !yield(&t.nodes[i]) {
				return
			}
		}
	}
}

// Parent returns the current parent of n, or nil if n has none.
func (t *NsTable) Parent(n *NsNode) *NsNode {
	if n == nil || !n.used || n.parent == noSlot {
		return nil
	}
	return &t.nodes[n.parent]
}

func linkIdOf(addr netip.Addr) [8]byte {
	b := addr.As16()
	return [8]byte(b[8:])
}

func checkAddr(dag *Dag, addr netip.Addr) error {
	if dag == nil || !addr.Is6() {
		return fmt.Errorf("%w: %s", ErrForeignAddress, addr)
	}
	b := addr.As16()
	if [8]byte(b[:8]) != dag.Prefix() {
		return fmt.Errorf("%w: %s not in dag %s", ErrForeignAddress, addr, dag.Id)
	}
	return nil
}

func (t *NsTable) lookup(dag *Dag, addr netip.Addr) int {
	if checkAddr(dag, addr) != nil {
		return noSlot
	}
	if slot, ok := t.index[nsKey{dag, linkIdOf(addr)}]; ok {
		return slot
	}
	return noSlot
}

// Find returns the record for addr in dag, or nil.
func (t *NsTable) Find(dag *Dag, addr netip.Addr) *NsNode {
	slot := t.lookup(dag, addr)
	if slot == noSlot {
		return nil
	}
	return &t.nodes[slot]
}

func (t *NsTable) reachable(dag *Dag, slot int) bool {
	root := t.lookup(dag, dag.Id)
	if root == noSlot {
		return false
	}
	// bounded, the parent graph may contain cycles among unreachable records
	for depth := len(t.nodes); slot != noSlot && slot != root && depth > 0; depth-- {
		slot = t.nodes[slot].parent
	}
	return slot == root
}

// IsReachable reports whether walking parent links from addr reaches the DAG root.
func (t *NsTable) IsReachable(dag *Dag, addr netip.Addr) bool {
	slot := t.lookup(dag, addr)
	if slot == noSlot {
		return false
	}
	return t.reachable(dag, slot)
}

func (t *NsTable) alloc() int {
	if len(t.free) == 0 {
		return noSlot
	}
	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	return slot
}

func (t *NsTable) release(slot int) {
	n := &t.nodes[slot]
	for i := range t.nodes {
		if t.nodes[i].used && t.nodes[i].parent == slot {
			// orphaned until a later DAO names a new parent
			t.nodes[i].parent = noSlot
		}
	}
	delete(t.index, nsKey{n.Dag, n.LinkId})
	*n = NsNode{parent: noSlot, slot: slot}
	t.free = append(t.free, slot)
}

// UpdateNode records that child reaches the root through parent, creating
// records as needed. An invalid parent address means child advertised no
// parent. A reachable child is never moved under a parent that would
// disconnect it from the root.
func (t *NsTable) UpdateNode(dag *Dag, child, parent netip.Addr, lifetime uint32) (*NsNode, error) {
	if err := checkAddr(dag, child); err != nil {
		return nil, err
	}
	isRoot := child == dag.Id
	if isRoot {
		parent = netip.Addr{}
		lifetime = LifetimeInfinite
	}
	if parent == child {
		parent = netip.Addr{}
	}

	parentSlot := noSlot
	createdParent := false
	if parent.IsValid() {
		if err := checkAddr(dag, parent); err != nil {
			return nil, err
		}
		parentSlot = t.lookup(dag, parent)
		if parentSlot == noSlot {
			pn, err := t.UpdateNode(dag, parent, netip.Addr{}, LifetimeInfinite)
			if err != nil {
				return nil, err
			}
			parentSlot = pn.slot
			createdParent = true
		}
	}

	key := nsKey{dag, linkIdOf(child)}
	childSlot, ok := t.index[key]
	if !ok {
		childSlot = t.alloc()
		if childSlot == noSlot {
			if createdParent {
				t.release(parentSlot)
			}
			return nil, fmt.Errorf("%w: cannot track %s", ErrTableFull, child)
		}
		t.nodes[childSlot] = NsNode{parent: noSlot, slot: childSlot, used: true}
		t.index[key] = childSlot
	}

	n := &t.nodes[childSlot]
	n.Dag = dag
	n.Lifetime = lifetime
	n.LinkId = key.id

	if t.reachable(dag, childSlot) {
		old := n.parent
		n.parent = parentSlot
		if !t.reachable(dag, childSlot) {
			n.parent = old
		}
	} else {
		n.parent = parentSlot
	}
	return n, nil
}

// ExpireParent schedules the removal of child if its current parent is
// parent. The link survives RemovalDelay ticks so that a later DAO can still
// refresh it.
func (t *NsTable) ExpireParent(dag *Dag, child, parent netip.Addr) bool {
	c := t.lookup(dag, child)
	p := t.lookup(dag, parent)
	if c == noSlot || p == noSlot || t.nodes[c].parent != p {
		return false
	}
	t.nodes[c].Lifetime = t.RemovalDelay
	return true
}

// Tick ages the table by one lifetime unit. Records whose lifetime already
// reached zero are removed first, and their addresses returned.
func (t *NsTable) Tick() []netip.Addr {
	removed := make([]netip.Addr, 0)
	for i := range t.nodes {
		if t.nodes[i].used && t.nodes[i].Lifetime == 0 {
			removed = append(removed, ReconstructAddress(&t.nodes[i]))
			t.release(i)
		}
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.used && n.Lifetime != LifetimeInfinite && n.Lifetime > 0 {
			n.Lifetime--
		}
	}
	return removed
}

// SourceRoute returns the hops from the root to dest, root first and dest
// last. ok is false if dest is unknown or not reachable.
func (t *NsTable) SourceRoute(dag *Dag, dest netip.Addr) (hops []netip.Addr, ok bool) {
	slot := t.lookup(dag, dest)
	if slot == noSlot || !t.reachable(dag, slot) {
		return nil, false
	}
	for ; slot != noSlot; slot = t.nodes[slot].parent {
		hops = append(hops, ReconstructAddress(&t.nodes[slot]))
	}
	slices.Reverse(hops)
	return hops, true
}

func (t *NsTable) String() string {
	lines := make([]string, 0, t.Count())
	for n := range t.All() {
		via := "none"
		if p := t.Parent(n); p != nil {
			via = ReconstructAddress(p).String()
		}
		lines = append(lines, fmt.Sprintf("%s via %s", n, via))
	}
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}
