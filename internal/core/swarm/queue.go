package swarm

import "sync"

// eventQueue 无界事件队列
//
// 生产者永不阻塞；pump goroutine 把事件按序送入 out。
type eventQueue struct {
	mu       sync.Mutex
	items    []Event
	wake     chan struct{}
	out      chan Event
	stop     chan struct{}
	draining bool
	stopped  bool

	stopOnce sync.Once
	done     chan struct{}
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.pump()
	return q
}

// push 追加事件，队列结束后丢弃
func (q *eventQueue) push(ev Event) bool {
	q.mu.Lock()
	if q.draining || q.stopped {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
	return true
}

// finish 不再接受新事件，已排队事件送达后关闭 out
func (q *eventQueue) finish() {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	q.signal()
}

// shutdown 丢弃未送达事件并立即关闭 out
func (q *eventQueue) shutdown() {
	q.mu.Lock()
	q.stopped = true
	q.items = nil
	q.mu.Unlock()
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}

// len 返回待送达事件数
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pump() {
	defer close(q.done)
	defer close(q.out)

	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			draining := q.draining
			q.mu.Unlock()
			if draining {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}
		ev := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.stop:
			return
		}
	}
}
