package vulkan

import "sync"

// queueLocks serializes access to each queue family. vkQueueSubmit,
// vkQueuePresentKHR and vkQueueWaitIdle require external synchronization on
// the queue, and the graphics and present queues may be the same one.
type queueLocks struct {
	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

func newQueueLocks() *queueLocks {
	return &queueLocks{locks: make(map[uint32]*sync.Mutex)}
}

func (q *queueLocks) lock(family uint32) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.locks[family]
	if !ok {
		l = &sync.Mutex{}
		q.locks[family] = l
	}
	return l
}

func (q *queueLocks) call(family uint32, fn func() error) error {
	l := q.lock(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
