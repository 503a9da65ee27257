package cache

// DLLNode is the single entity of the doubly linked list.
type DLLNode struct {
	LeftNode  *DLLNode
	RightNode *DLLNode
	Key       string
	Value     []byte
}

// DoublyLinkedList keeps nodes in recency order: Head is the most
// recently used node and Tail the least.
type DoublyLinkedList struct {
	Head *DLLNode
	Tail *DLLNode
}

// NewDoublyLinkedList returns a new instance of an empty DoublyLinkedList.
func NewDoublyLinkedList() *DoublyLinkedList {
	return &DoublyLinkedList{}
}

// PushFront inserts node at the head of the list.
func (dll *DoublyLinkedList) PushFront(node *DLLNode) {
	node.LeftNode = nil
	node.RightNode = dll.Head
	if dll.Head != nil {
		dll.Head.LeftNode = node
	}
	dll.Head = node
	if dll.Tail == nil {
		dll.Tail = node
	}
}

// DeleteNode unlinks node from the list.
func (dll *DoublyLinkedList) DeleteNode(node *DLLNode) {
	if node.LeftNode != nil {
		node.LeftNode.RightNode = node.RightNode
	} else {
		dll.Head = node.RightNode
	}
	if node.RightNode != nil {
		node.RightNode.LeftNode = node.LeftNode
	} else {
		dll.Tail = node.LeftNode
	}
	node.LeftNode = nil
	node.RightNode = nil
}

// MoveToFront makes node the head of the list.
func (dll *DoublyLinkedList) MoveToFront(node *DLLNode) {
	if dll.Head == node {
		return
	}
	dll.DeleteNode(node)
	dll.PushFront(node)
}

// Keys returns the keys from head to tail.
func (dll *DoublyLinkedList) Keys() []string {
	var keys []string
	for n := dll.Head; n != nil; n = n.RightNode {
		keys = append(keys, n.Key)
	}
	return keys
}
