package clock

import (
	"container/heap"
	"sync"
	"time"
)

const (
	defaultBatchWorkers = 10
	batchIdleTimeout    = 30 * time.Second
)

// Batch is a Clock that multiplexes all pending callbacks onto one
// ordered queue served by a small, self-reclaiming pool of worker
// goroutines. Compared to System it trades one runtime timer per
// registration for a shared heap, which keeps processes with very many
// concurrent registrations cheap. Workers spawn up to the cap while
// there is a backlog of due callbacks and exit after sitting idle.
type Batch struct {
	mu          sync.Mutex
	wakeCh      chan bool
	queue       batchQueue
	workers     int
	maxWorkers  int
	idleTimeout time.Duration
}

// NewBatch returns a Batch clock running at most maxWorkers callback
// goroutines. A non-positive maxWorkers selects the default of 10.
func NewBatch(maxWorkers int) *Batch {
	if maxWorkers <= 0 {
		maxWorkers = defaultBatchWorkers
	}
	b := &Batch{
		maxWorkers:  maxWorkers,
		wakeCh:      make(chan bool, maxWorkers),
		idleTimeout: batchIdleTimeout,
	}
	heap.Init(&b.queue)
	return b
}

func (b *Batch) Now() time.Time { return time.Now() }

// AfterFunc registers f to run once d elapses. A nil f registers
// nothing and returns a Timer whose Stop reports false.
func (b *Batch) AfterFunc(d time.Duration, f func()) Timer {
	t := &batchTimer{b: b, f: f, fireT: time.Now().Add(d), idx: -1}
	if f != nil {
		b.add(t)
	}
	return t
}

func (b *Batch) add(t *batchTimer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	heap.Push(&b.queue, t)
	if b.workers == 0 {
		b.workers++
		go b.worker()
	} else {
		b.wake()
	}
}

func (b *Batch) remove(t *batchTimer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.idx < 0 {
		return false
	}
	t.f = nil
	heap.Remove(&b.queue, t.idx)
	if b.workers > 0 {
		b.wake()
	}
	return true
}

func (b *Batch) wake() {
	select {
	case b.wakeCh <- true:
	default:
	}
}

// worker serves the queue head. It sleeps until the nearest deadline,
// runs the callback, and helps spawn another worker when more
// callbacks are already overdue. A worker that wakes twice with
// nothing to do exits, so an idle Batch holds no goroutines.
func (b *Batch) worker() {
	idleWakes := 0
	var f func()
	for {
		if f != nil {
			f()
			f = nil
			idleWakes = 0
		} else {
			idleWakes++
		}

		var wait time.Duration
		b.mu.Lock()
		if b.queue.Len() == 0 {
			if idleWakes > 1 {
				b.workers--
				b.mu.Unlock()
				return
			}
			wait = b.idleTimeout
		} else {
			fireT := b.queue[0].fireT
			now := time.Now()
			if now.After(fireT) {
				t := heap.Pop(&b.queue).(*batchTimer)
				f = t.f
				if b.queue.Len() > 0 && now.After(b.queue[0].fireT) && b.workers < b.maxWorkers {
					b.workers++
					go b.worker()
				}
				b.mu.Unlock()
				continue
			}
			wait = fireT.Sub(now)
			if b.workers > 1 {
				if idleWakes > 1 {
					b.workers--
					b.mu.Unlock()
					return
				}
				if wait > b.idleTimeout {
					wait = b.idleTimeout
				}
			}
		}
		b.mu.Unlock()

		tmr := time.NewTimer(wait)
		select {
		case <-tmr.C:
		case <-b.wakeCh:
			if !tmr.Stop() {
				<-tmr.C
			}
			idleWakes = 0
		}
	}
}

type batchTimer struct {
	b     *Batch
	f     func()
	fireT time.Time
	idx   int
}

func (t *batchTimer) Stop() bool {
	return t.b.remove(t)
}

// batchQueue is a min-heap of registrations ordered by fire time.
type batchQueue []*batchTimer

func (q batchQueue) Len() int { return len(q) }

func (q batchQueue) Less(i, j int) bool {
	return q[i].fireT.Before(q[j].fireT)
}

func (q batchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx, q[j].idx = i, j
}

func (q *batchQueue) Push(x any) {
	t := x.(*batchTimer)
	t.idx = q.Len()
	*q = append(*q, t)
}

func (q *batchQueue) Pop() any {
	last := q.Len() - 1
	t := (*q)[last]
	(*q)[last] = nil
	*q = (*q)[:last]
	t.idx = -1
	return t
}
