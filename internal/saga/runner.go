// Package saga runs the builder workflows: publishing and editing
// collections, saving items, deploying scenes and managing land. Every
// workflow reports through outcomes on the bus; nothing here writes state
// directly.
package saga

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"builder/internal/outcome"
)

// Discipline decides what happens when a task is started while another of
// the same kind and key is still running.
type Discipline int

const (
	// Every lets tasks run side by side.
	Every Discipline = iota
	// Latest cancels the running task before starting the new one.
	Latest
)

// DefaultDisciplines lists the kinds that only keep their newest task.
var DefaultDisciplines = map[outcome.Kind]Discipline{
	outcome.KindSaveMultipleItems: Latest,
	outcome.KindSyncTokenIDs:      Latest,
	outcome.KindDeployToLand:      Latest,
	outcome.KindDeployToPool:      Latest,
	outcome.KindClearDeployment:   Latest,
	outcome.KindFetchDeployments:  Latest,
	outcome.KindFetchLands:        Latest,
}

// Task is one workflow invocation. It must return once ctx is done.
type Task func(ctx context.Context)

type slot struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner starts workflow tasks as goroutines under a shared base context.
type Runner struct {
	ctx         context.Context
	stop        context.CancelFunc
	disciplines map[outcome.Kind]Discipline
	logger      *zap.Logger

	mu        sync.Mutex
	publisher outcome.Publisher
	running   map[string]*slot
	wg        sync.WaitGroup
}

func NewRunner(disciplines map[outcome.Kind]Discipline, logger *zap.Logger) *Runner {
	if disciplines == nil {
		disciplines = DefaultDisciplines
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Runner{
		ctx:         ctx,
		stop:        stop,
		disciplines: disciplines,
		logger:      logger,
		running:     make(map[string]*slot),
	}
}

// ReportTo makes a panicking task settle as a failure outcome on p.
func (r *Runner) ReportTo(p outcome.Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = p
}

func (r *Runner) reporter() outcome.Publisher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publisher
}

func (r *Runner) Discipline(kind outcome.Kind) Discipline {
	return r.disciplines[kind]
}

func slotKey(kind outcome.Kind, key string) string {
	return string(kind) + "|" + key
}

// Go starts task. Under the Latest discipline the previous task for the same
// kind and key is cancelled first; it is not waited for.
func (r *Runner) Go(kind outcome.Kind, key string, task Task) {
	ctx, cancel := context.WithCancel(r.ctx)
	s := &slot{cancel: cancel, done: make(chan struct{})}
	id := slotKey(kind, key)

	latest := r.Discipline(kind) == Latest
	if latest {
		r.mu.Lock()
		if prev, ok := r.running[id]; ok {
			prev.cancel()
		}
		r.running[id] = s
		r.mu.Unlock()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(s.done)
		defer cancel()
		if latest {
			defer r.release(id, s)
		}
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("workflow panicked", zap.String("kind", string(kind)), zap.String("key", key), zap.Any("panic", rec))
				if p := r.reporter(); p != nil {
					p.Publish(context.WithoutCancel(ctx), outcome.Failure(kind, key, fmt.Errorf("workflow panicked: %v", rec)))
				}
			}
		}()
		task(ctx)
	}()
}

func (r *Runner) release(id string, s *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[id] == s {
		delete(r.running, id)
	}
}

// Cancel stops the running Latest task for kind and key. It reports whether
// there was one.
func (r *Runner) Cancel(kind outcome.Kind, key string) bool {
	r.mu.Lock()
	s, ok := r.running[slotKey(kind, key)]
	r.mu.Unlock()
	if ok {
		s.cancel()
	}
	return ok
}

// Running reports whether a Latest task is in flight for kind and key.
func (r *Runner) Running(kind outcome.Kind, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[slotKey(kind, key)]
	return ok
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every task and waits for them until ctx ends.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
