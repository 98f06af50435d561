package tree

import (
	"encoding/binary"
	"fmt"
)

// magic identifies a serialized tree file: the ASCII bytes "TREE" read
// as a 32-bit constant.
const magic = 0x54524545

// DecisionTree is a breadth-first contiguous array of Nodes. Root is
// index 0.
type DecisionTree struct {
	Nodes []Node
}

// New returns an empty tree, ready to have its root appended.
func New() *DecisionTree { return &DecisionTree{} }

// AppendLeaf appends a leaf node and returns its index.
func (t *DecisionTree) AppendLeaf(label uint8) (uint16, error) {
	if len(t.Nodes) >= MaxNodes {
		return 0, fmt.Errorf("tree: node count would exceed %d", MaxNodes)
	}
	idx := uint16(len(t.Nodes))
	t.Nodes = append(t.Nodes, NewLeaf(label))
	return idx, nil
}

// GrowSplit rewrites the node at idx as an internal split and appends
// its two children, left then right, as leaf placeholders at the end
// of the array, returning the left child's index. Appending both
// children at the moment their parent is expanded is what keeps a
// breadth-first construction's siblings adjacent, so the right child's
// index never needs storing. The placeholders carry label 0 until the
// builder finalizes them with SetLeaf or a further GrowSplit.
func (t *DecisionTree) GrowSplit(idx uint16, featureID uint16, thresholdSlot uint8) (uint16, error) {
	if int(idx) >= len(t.Nodes) {
		return 0, fmt.Errorf("tree: no node at index %d to split", idx)
	}
	if len(t.Nodes)+2 > MaxNodes {
		return 0, fmt.Errorf("tree: node count would exceed %d with both children", MaxNodes)
	}
	left := uint16(len(t.Nodes))
	t.Nodes = append(t.Nodes, NewLeaf(0), NewLeaf(0))
	t.Nodes[idx] = NewInternal(featureID, thresholdSlot, left)
	return left, nil
}

// SetLeaf rewrites the node at idx as a leaf with the given label. A
// no-op if idx is out of range.
func (t *DecisionTree) SetLeaf(idx uint16, label uint8) {
	if int(idx) < len(t.Nodes) {
		t.Nodes[idx] = NewLeaf(label)
	}
}

// Predict walks the tree for one sample's feature values (quantized,
// indexed by feature id) and returns the leaf label reached. Any
// out-of-bounds access (corrupt tree, feature vector shorter than the
// tree expects, or a child index escaping the array) returns 0
// (abstention) rather than panicking, per the defensive prediction
// contract.
func (t *DecisionTree) Predict(features []uint8) uint8 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := uint16(0)
	for {
		if int(idx) >= len(t.Nodes) {
			return 0
		}
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return n.Label()
		}
		fid := n.FeatureID()
		if int(fid) >= len(features) {
			return 0
		}
		if features[fid] <= n.ThresholdSlot() {
			idx = n.LeftChild()
		} else {
			idx = n.RightChild()
		}
	}
}

// Save serializes the tree: 4-byte magic, 4-byte node count, then
// node_count little-endian 4-byte packed values.
func (t *DecisionTree) Save() []byte {
	buf := make([]byte, 8+4*len(t.Nodes))
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(t.Nodes)))
	for i, n := range t.Nodes {
		binary.LittleEndian.PutUint32(buf[8+4*i:12+4*i], uint32(n))
	}
	return buf
}

// Load deserializes a tree previously produced by Save. It refuses
// corrupt input: a magic mismatch, a node count exceeding MaxNodes, or a
// buffer shorter than the header claims.
func Load(data []byte) (*DecisionTree, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("tree: buffer too short for header (%d bytes)", len(data))
	}
	gotMagic := binary.LittleEndian.Uint32(data[0:4])
	if gotMagic != magic {
		return nil, fmt.Errorf("tree: bad magic 0x%08X, want 0x%08X", gotMagic, magic)
	}
	count := binary.LittleEndian.Uint32(data[4:8])
	if count > MaxNodes {
		return nil, fmt.Errorf("tree: node count %d exceeds max %d", count, MaxNodes)
	}
	want := 8 + 4*int(count)
	if len(data) < want {
		return nil, fmt.Errorf("tree: buffer too short, want %d bytes got %d", want, len(data))
	}
	nodes := make([]Node, count)
	for i := range nodes {
		off := 8 + 4*i
		nodes[i] = Node(binary.LittleEndian.Uint32(data[off : off+4]))
	}
	return &DecisionTree{Nodes: nodes}, nil
}

// Depth returns the tree's height (a single leaf root has depth 1; an
// empty tree has depth 0).
func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	return t.depthOf(0)
}

func (t *DecisionTree) depthOf(idx uint16) int {
	if int(idx) >= len(t.Nodes) {
		return 0
	}
	n := t.Nodes[idx]
	if n.IsLeaf() {
		return 1
	}
	left := t.depthOf(n.LeftChild())
	right := t.depthOf(n.RightChild())
	if left > right {
		return 1 + left
	}
	return 1 + right
}

// LeafCount returns the number of leaf nodes.
func (t *DecisionTree) LeafCount() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}
