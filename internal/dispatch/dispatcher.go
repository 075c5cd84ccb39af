package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"pxfeed/internal/obs"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
)

// Task is one unit of subscriber work.
type Task func(ctx context.Context)

// Config controls the worker pool.
type Config struct {
	Workers   int
	QueueSize int
	Overflow  OverflowPolicy
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}

// Dispatcher runs tasks on long-lived workers. Tasks submitted with the same
// key always run on the same worker in submission order.
type Dispatcher struct {
	cfg     Config
	shards  []*Queue[Task]
	metrics *obs.Metrics
	wg      sync.WaitGroup
	done    chan struct{}

	started atomic.Bool
	closed  atomic.Bool
}

// New allocates the shard queues; workers start with Start.
func New(cfg Config, metrics *obs.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	shards := make([]*Queue[Task], cfg.Workers)
	for i := range shards {
		shards[i] = NewQueue[Task](cfg.QueueSize, cfg.Overflow)
	}
	return &Dispatcher{
		cfg:     cfg,
		shards:  shards,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Start launches one worker per shard. Workers stop when ctx is done, the
// process is shutting down, or Close is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.closed.Load() {
		return exception.ErrDispatchClosed
	}
	if !d.started.CompareAndSwap(false, true) {
		return exception.ErrDispatchStarted
	}

	for i, q := range d.shards {
		d.wg.Add(1)
		go func(idx int, q *Queue[Task]) {
			defer d.wg.Done()
			d.work(ctx, idx, q)
		}(i, q)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-sys.Shutdown():
		case <-d.done:
			return
		}
		d.closeShards()
	}()

	logs.Infof("dispatch started, workers: %d, queue: %d, overflow: %s", d.cfg.Workers, d.cfg.QueueSize, d.cfg.Overflow)
	return nil
}

// Submit enqueues the task on the shard owning key.
func (d *Dispatcher) Submit(key uint64, task Task) error {
	if task == nil {
		return exception.ErrInvalidArgument
	}
	if d.closed.Load() {
		d.metrics.IncDrop(obs.DropQueueClosed)
		return exception.ErrDispatchClosed
	}
	if !d.started.Load() {
		return exception.ErrDispatchNotStarted
	}

	accepted, evicted := d.shard(key).Push(task)
	for range evicted {
		d.metrics.IncDrop(obs.DropQueueFull)
	}
	if evicted > 0 {
		logs.Warnf("dispatch shard %d full, dropped %d oldest task(s)", d.shardIndex(key), evicted)
	}
	if accepted {
		return nil
	}
	if d.closed.Load() {
		d.metrics.IncDrop(obs.DropQueueClosed)
		return exception.ErrDispatchClosed
	}
	d.metrics.IncDrop(obs.DropQueueFull)
	return exception.ErrDispatchQueueFull
}

// Pending returns the number of queued tasks across all shards.
func (d *Dispatcher) Pending() int {
	total := 0
	for _, q := range d.shards {
		total += q.Len()
	}
	return total
}

// Close stops accepting tasks, lets the workers drain what is queued and
// waits for them to exit.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(d.done)
	d.closeShards()
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) closeShards() {
	d.closed.Store(true)
	for _, q := range d.shards {
		q.Close()
	}
}

func (d *Dispatcher) shardIndex(key uint64) int {
	return int(key % uint64(len(d.shards)))
}

func (d *Dispatcher) shard(key uint64) *Queue[Task] {
	return d.shards[d.shardIndex(key)]
}

func (d *Dispatcher) work(ctx context.Context, idx int, q *Queue[Task]) {
	for {
		task, ok := q.Pop()
		if !ok {
			logs.Debugf("dispatch worker %d stopped", idx)
			return
		}
		d.run(ctx, idx, task)
	}
}

func (d *Dispatcher) run(ctx context.Context, idx int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncPanic()
			logs.Errorf("dispatch worker %d recovered handler panic: %+v", idx, r)
		}
	}()
	task(ctx)
}
