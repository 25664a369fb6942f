package arena

import "container/list"

// waitQueue is one matchmaking FIFO. The index keeps LEAVE and the
// membership check O(1); the list keeps join order for pairing.
// All access happens under the hub lock.
type waitQueue struct {
	order *list.List
	index map[string]*list.Element
}

func newWaitQueue() *waitQueue {
	return &waitQueue{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (q *waitQueue) push(s *Session) {
	q.index[s.pseudo] = q.order.PushBack(s)
}

// pushFront restores a player to the head of the queue, used when match
// creation fails after a pop.
func (q *waitQueue) pushFront(s *Session) {
	q.index[s.pseudo] = q.order.PushFront(s)
}

func (q *waitQueue) contains(pseudo string) bool {
	_, ok := q.index[pseudo]
	return ok
}

func (q *waitQueue) remove(pseudo string) bool {
	elem, ok := q.index[pseudo]
	if !ok {
		return false
	}
	q.order.Remove(elem)
	delete(q.index, pseudo)
	return true
}

func (q *waitQueue) len() int {
	return q.order.Len()
}

// popPair removes and returns the two players that joined earliest, in
// join order. Returns nil, nil when fewer than two players wait.
func (q *waitQueue) popPair() (*Session, *Session) {
	if q.order.Len() < 2 {
		return nil, nil
	}
	first := q.order.Remove(q.order.Front()).(*Session)
	delete(q.index, first.pseudo)
	second := q.order.Remove(q.order.Front()).(*Session)
	delete(q.index, second.pseudo)
	return first, second
}
