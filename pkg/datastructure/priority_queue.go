package datastructure

import "errors"

var ErrItemNotFound = errors.New("item not found in priority queue")

type PriorityQueueNode[T comparable] struct {
	Rank float64
	Item T
}

// MinHeap binary heap priorityqueue
type MinHeap[T comparable] struct {
	heap  []PriorityQueueNode[T]
	index map[T]int
}

func NewMinHeap[T comparable]() *MinHeap[T] {
	return &MinHeap[T]{
		heap:  make([]PriorityQueueNode[T], 0),
		index: make(map[T]int),
	}
}

func (h *MinHeap[T]) parent(index int) int {
	return (index - 1) / 2
}

func (h *MinHeap[T]) isEmpty() bool {
	return len(h.heap) == 0
}

func (h *MinHeap[T]) Size() int {
	return len(h.heap)
}

func (h *MinHeap[T]) GetMin() (PriorityQueueNode[T], bool) {
	if h.isEmpty() {
		return PriorityQueueNode[T]{}, false
	}
	return h.heap[0], true
}

func (h *MinHeap[T]) Contains(item T) bool {
	_, ok := h.index[item]
	return ok
}

func (h *MinHeap[T]) Insert(key PriorityQueueNode[T]) {
	h.heap = append(h.heap, key)
	h.index[key.Item] = h.Size() - 1
	h.heapifyUp(h.Size() - 1)
}

// DecreaseKey lower the rank of an item already in the queue.
func (h *MinHeap[T]) DecreaseKey(key PriorityQueueNode[T]) error {
	idx, ok := h.index[key.Item]
	if !ok {
		return ErrItemNotFound
	}
	h.heap[idx].Rank = key.Rank
	h.heapifyUp(idx)
	return nil
}

func (h *MinHeap[T]) ExtractMin() (PriorityQueueNode[T], error) {
	if h.isEmpty() {
		return PriorityQueueNode[T]{}, ErrItemNotFound
	}
	root := h.heap[0]
	last := h.Size() - 1
	h.heap[0] = h.heap[last]
	h.index[h.heap[0].Item] = 0
	h.heap = h.heap[:last]
	delete(h.index, root.Item)
	if !h.isEmpty() {
		h.heapifyDown(0)
	}
	return root, nil
}

// heapifyUp maintain the heap property from index upward. O(logN) tree height.
func (h *MinHeap[T]) heapifyUp(index int) {
	for index != 0 && h.heap[index].Rank < h.heap[h.parent(index)].Rank {
		p := h.parent(index)
		h.heap[index], h.heap[p] = h.heap[p], h.heap[index]
		h.index[h.heap[index].Item] = index
		h.index[h.heap[p].Item] = p
		index = p
	}
	h.index[h.heap[index].Item] = index
}

// heapifyDown maintain the heap property from index downward. O(logN) tree height.
func (h *MinHeap[T]) heapifyDown(index int) {
	for {
		smallest := index
		left := 2*index + 1
		right := 2*index + 2
		if left < len(h.heap) && h.heap[left].Rank < h.heap[smallest].Rank {
			smallest = left
		}
		if right < len(h.heap) && h.heap[right].Rank < h.heap[smallest].Rank {
			smallest = right
		}
		if smallest == index {
			break
		}
		h.heap[index], h.heap[smallest] = h.heap[smallest], h.heap[index]
		h.index[h.heap[index].Item] = index
		h.index[h.heap[smallest].Item] = smallest
		index = smallest
	}
	h.index[h.heap[index].Item] = index
}
