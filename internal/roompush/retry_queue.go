package roompush

import (
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
)

type retryQueue struct {
	clock   quartz.Clock
	out     chan<- pushJob
	done    <-chan struct{}
	pending atomic.Int64
}

func newRetryQueue(clock quartz.Clock, out chan<- pushJob, done <-chan struct{}) *retryQueue {
	return &retryQueue{clock: clock, out: out, done: done}
}

func (q *retryQueue) Enqueue(job pushJob, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	q.clock.AfterFunc(delay, func() {
		defer q.pending.Add(-1)
		select {
		case <-q.done:
		case q.out <- job:
			metricPushQueueLen.Set(int64(len(q.out)))
		}
	}, "roompush", "retry")
	q.pending.Add(1)
}

// Pending counts scheduled retries that have not fired yet.
func (q *retryQueue) Pending() int64 {
	return q.pending.Load()
}
