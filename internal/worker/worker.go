package worker

import (
	"context"
	"sync"
)

// Pool runs one ordered job queue per key, with a shared semaphore capping
// how many jobs execute at once across all keys. Jobs for the same key are
// handled strictly in arrival order, so a second message from a user queues
// behind the response already streaming instead of racing it.
type Pool[K comparable, J any] struct {
	ctx       context.Context
	sem       chan struct{}
	queueSize int
	handle    func(context.Context, K, J)

	mu     sync.Mutex
	queues map[K]chan J
}

func NewPool[K comparable, J any](ctx context.Context, maxConcurrent, queueSize int, handle func(context.Context, K, J)) *Pool[K, J] {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Pool[K, J]{
		ctx:       ctx,
		sem:       make(chan struct{}, maxConcurrent),
		queueSize: queueSize,
		handle:    handle,
		queues:    make(map[K]chan J),
	}
}

// Enqueue places job on the key's queue, starting the queue's drain
// goroutine on first use. Blocks while the queue is full; fails only when
// ctx or the pool context is done.
func (p *Pool[K, J]) Enqueue(ctx context.Context, key K, job J) error {
	if ctx == nil {
		ctx = p.ctx
	}
	jobs := p.queueFor(key)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	case jobs <- job:
		return nil
	}
}

func (p *Pool[K, J]) queueFor(key K) chan J {
	p.mu.Lock()
	defer p.mu.Unlock()
	jobs, ok := p.queues[key]
	if ok {
		return jobs
	}
	jobs = make(chan J, p.queueSize)
	p.queues[key] = jobs
	go p.drain(key, jobs)
	return jobs
}

func (p *Pool[K, J]) drain(key K, jobs <-chan J) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-jobs:
			select {
			case p.sem <- struct{}{}:
			case <-p.ctx.Done():
				return
			}
			func() {
				defer func() { <-p.sem }()
				p.handle(p.ctx, key, job)
			}()
		}
	}
}
