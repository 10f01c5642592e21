// tree is the binary tree structure of free space map.
// the tree is perfect, so the number of leaves is always power of 2
package fsm

// nodeIndex is the index of fsm binary tree node.
// if index is 0, the node is root node
// if index is 1, the node is left child of root node
type nodeIndex uint

const (
	rootNodeIndex nodeIndex = 0
)

// getLeftChildNode returns the index of left child node of binary tree.
// this is expected to be called to go down the binary tree.
func getLeftChildNode(index nodeIndex) nodeIndex {
	return index*2 + 1
}

// getRightChildNode returns the index of right child node of binary tree.
func getRightChildNode(index nodeIndex) nodeIndex {
	return index*2 + 2
}

// getParentNode returns the index of parent node of binary tree.
// this is expected to be called to go up the binary tree after the leaf is updated.
func getParentNode(index nodeIndex) nodeIndex {
	return (index - 1) / 2
}

// leafNum returns the number of leaves of the tree
func leafNum(nodes []category) int {
	return (len(nodes) + 1) / 2
}

// nonLeafNodeNum returns the number of non-leaf nodes of the tree
func nonLeafNodeNum(nodes []category) int {
	return leafNum(nodes) - 1
}

// getSlotFromNodeIndex returns the page slot of the leaf node
func getSlotFromNodeIndex(nodes []category, index nodeIndex) int {
	return int(index) - nonLeafNodeNum(nodes)
}

// getNodeIndexFromSlot returns the leaf node index of the page slot
func getNodeIndexFromSlot(nodes []category, slot int) nodeIndex {
	return nodeIndex(slot + nonLeafNodeNum(nodes))
}

// isLeaf checks whether the node is leaf node or not
func isLeaf(nodes []category, index nodeIndex) bool {
	return int(index) >= nonLeafNodeNum(nodes)
}

// isRoot checks whether the node is root node or not
func isRoot(index nodeIndex) bool {
	return index == rootNodeIndex
}
