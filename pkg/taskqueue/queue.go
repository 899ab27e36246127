package taskqueue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a unit of fire-and-forget work. Jobs sharing a Key run on the same
// worker, in dispatch order.
type Job struct {
	Key     string
	Handler func(ctx context.Context) error
}

// Config sizes the queue and bounds retries.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalRetried    int64         `json:"total_retried"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalExhausted  int64         `json:"total_exhausted"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Queue runs jobs on a fixed set of workers, each with its own bounded queue.
// Dispatch never blocks: when a worker queue is full the job is dropped.
type Queue struct {
	cfg      Config
	workers  []*worker
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
	started  atomic.Bool

	totalDispatched int64
	totalProcessed  int64
	totalRetried    int64
	totalDropped    int64
	totalExhausted  int64

	// OnExhausted is called once a job has failed MaxAttempts times.
	OnExhausted func(job Job, err error)
}

type worker struct {
	id            int
	jobs          chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	queue         *Queue
}

func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	return &Queue{
		cfg:     cfg,
		workers: make([]*worker, cfg.Workers),
	}
}

// Start launches the workers. Handlers receive a context derived from ctx.
func (q *Queue) Start(ctx context.Context) {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < q.cfg.Workers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:     i,
			jobs:   make(chan Job, q.cfg.QueueSize),
			ctx:    workerCtx,
			cancel: cancel,
			queue:  q,
		}
		q.workers[i] = w

		q.wg.Add(1)
		go w.run(&q.wg)
	}

	logrus.Infof("[TASK_QUEUE] Started with %d workers, queue size: %d, max attempts: %d",
		q.cfg.Workers, q.cfg.QueueSize, q.cfg.MaxAttempts)
}

// TryDispatch enqueues job without blocking and reports whether it was accepted.
func (q *Queue) TryDispatch(job Job) bool {
	if q.stopped.Load() || !q.started.Load() {
		atomic.AddInt64(&q.totalDropped, 1)
		return false
	}

	atomic.AddInt64(&q.totalDispatched, 1)
	shard := q.shardFor(job.Key)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case q.workers[shard].jobs <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	atomic.AddInt64(&q.totalDropped, 1)
	logrus.Warnf("[TASK_QUEUE] Worker %d queue full (or stopped), dropping job %s", shard, job.Key)
	return false
}

// Stop closes the queues and waits for workers to drain them.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.stopped.Store(true)
		if !q.started.Load() {
			return
		}
		logrus.Info("[TASK_QUEUE] Stopping workers...")
		for _, w := range q.workers {
			close(w.jobs)
		}
		q.wg.Wait()
		for _, w := range q.workers {
			w.cancel()
		}
		logrus.Info("[TASK_QUEUE] All workers stopped")
	})
}

func (q *Queue) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.workers)))
}

func (q *Queue) Stats() Stats {
	workerStats := make([]WorkerStats, 0, len(q.workers))
	active := 0
	for _, w := range q.workers {
		if w == nil {
			continue
		}
		processing := atomic.LoadInt32(&w.isProcessing) == 1
		if processing {
			active++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobs),
			IsProcessing:  processing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	return Stats{
		NumWorkers:      q.cfg.Workers,
		QueueSize:       q.cfg.QueueSize,
		ActiveWorkers:   active,
		TotalDispatched: atomic.LoadInt64(&q.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&q.totalProcessed),
		TotalRetried:    atomic.LoadInt64(&q.totalRetried),
		TotalDropped:    atomic.LoadInt64(&q.totalDropped),
		TotalExhausted:  atomic.LoadInt64(&q.totalExhausted),
		WorkerStats:     workerStats,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range w.jobs {
		w.process(job)
	}
}

func (w *worker) process(job Job) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.queue.totalProcessed, 1)
	}()

	cfg := w.queue.cfg
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = w.invoke(job)
		if err == nil {
			return
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		atomic.AddInt64(&w.queue.totalRetried, 1)
		logrus.WithError(err).Debugf("[TASK_QUEUE] Job %s failed (attempt %d/%d), retrying", job.Key, attempt, cfg.MaxAttempts)
		if !sleep(w.ctx, backoff(cfg.BaseDelay, cfg.MaxDelay, attempt)) {
			break
		}
	}

	atomic.AddInt64(&w.queue.totalExhausted, 1)
	logrus.WithError(err).Errorf("[TASK_QUEUE] Job %s dropped after %d attempts", job.Key, cfg.MaxAttempts)
	if w.queue.OnExhausted != nil {
		w.queue.OnExhausted(job, err)
	}
}

func (w *worker) invoke(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Handler(w.ctx)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << (attempt - 1)
	if d <= 0 || d > max {
		return max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
