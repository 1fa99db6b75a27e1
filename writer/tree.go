package writer

import (
	"github.com/locdb/locdb/format"
)

// leafData is the payload attached to a network's terminal tree node.
type leafData struct {
	country [2]byte
	flags   format.Flag
	asn     uint32
}

// buildNode is an in-memory tree node. Children and leaves are arena
// indices, -1 meaning absent.
type buildNode struct {
	children [2]int32
	hasLeaf  bool
	leaf     leafData
}

// buildTree is the writer-side network tree. Nodes live in a flat
// arena; the root is node 0 and is never removed.
type buildTree struct {
	nodes []buildNode
}

func newBuildTree() *buildTree {
	return &buildTree{
		nodes: []buildNode{{children: [2]int32{-1, -1}}},
	}
}

func bit(a [16]byte, i int) int {
	if a[i/8]&(0x80>>(i%8)) != 0 {
		return 1
	}
	return 0
}

// insert walks the top bits of the address and installs the payload at
// depth bits. A network strictly enclosed by an existing network with
// identical payload is dropped. Re-inserting the same network merges
// flags by OR.
func (t *buildTree) insert(a [16]byte, bits int, leaf leafData) {
	node := int32(0)
	for depth := 0; depth < bits; depth++ {
		if t.nodes[node].hasLeaf && t.nodes[node].leaf == leaf {
			return
		}
		b := bit(a, depth)
		if t.nodes[node].children[b] < 0 {
			t.nodes = append(t.nodes, buildNode{children: [2]int32{-1, -1}})
			t.nodes[node].children[b] = int32(len(t.nodes) - 1)
		}
		node = t.nodes[node].children[b]
	}

	n := &t.nodes[node]
	switch {
	case !n.hasLeaf:
		n.hasLeaf = true
		n.leaf = leaf
	case n.leaf.country == leaf.country && n.leaf.asn == leaf.asn:
		n.leaf.flags |= leaf.flags
	default:
		// Last insert wins, accumulated flags are kept.
		flags := n.leaf.flags | leaf.flags
		n.leaf = leaf
		n.leaf.flags = flags
	}
}

// isPureLeaf reports whether the node carries a payload and nothing
// below it.
func (t *buildTree) isPureLeaf(node int32) bool {
	n := t.nodes[node]
	return n.hasLeaf && n.children[0] < 0 && n.children[1] < 0
}

// merge collapses sibling leaves with identical payload into their
// parent, bottom-up. A post-order pass propagates merges all the way to
// the root.
func (t *buildTree) merge(node int32) {
	for _, child := range t.nodes[node].children {
		if child >= 0 {
			t.merge(child)
		}
	}

	zero := t.nodes[node].children[0]
	one := t.nodes[node].children[1]
	if zero < 0 || one < 0 {
		return
	}
	if !t.isPureLeaf(zero) || !t.isPureLeaf(one) {
		return
	}
	if t.nodes[zero].leaf != t.nodes[one].leaf {
		return
	}

	// Both halves carry the same payload, the parent covers them fully.
	t.nodes[node].hasLeaf = true
	t.nodes[node].leaf = t.nodes[zero].leaf
	t.nodes[node].children = [2]int32{-1, -1}
}

// prune drops empty subtrees left behind by merging. The root stays
// even when empty. It reports whether the node itself is prunable.
func (t *buildTree) prune(node int32) bool {
	n := &t.nodes[node]
	for b, child := range n.children {
		if child >= 0 && t.prune(child) {
			n.children[b] = -1
		}
	}
	return !n.hasLeaf && n.children[0] < 0 && n.children[1] < 0
}

// canonicalize applies the merge and prune passes.
func (t *buildTree) canonicalize() {
	t.merge(0)
	t.prune(0)
}

// serialize lays the tree out in pre-order and assigns network-leaf
// indices in the same order.
func (t *buildTree) serialize() (nodes []format.RawTreeNode, leaves []format.RawNetwork) {
	var emit func(node int32) uint32
	emit = func(node int32) uint32 {
		n := t.nodes[node]
		self := uint32(len(nodes))
		nodes = append(nodes, format.RawTreeNode{
			Zero:         format.NullIndex,
			One:          format.NullIndex,
			NetworkIndex: format.NullIndex,
		})

		if n.hasLeaf {
			nodes[self].NetworkIndex = uint32(len(leaves))
			leaves = append(leaves, format.RawNetwork{
				Country: n.leaf.country,
				Flags:   n.leaf.flags,
				ASN:     n.leaf.asn,
			})
		}
		if n.children[0] >= 0 {
			nodes[self].Zero = emit(n.children[0])
		}
		if n.children[1] >= 0 {
			nodes[self].One = emit(n.children[1])
		}
		return self
	}
	emit(0)
	return nodes, leaves
}
