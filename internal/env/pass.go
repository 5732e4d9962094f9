package env

import (
	"context"
	"sync"
)

// Pass groups the tasks of one graph run.
type Pass struct {
	env   *Env
	label string

	wg   sync.WaitGroup
	seal sync.Once
	done chan struct{}
}

// BeginPass opens a pass. It counts as pending until it is sealed and all
// of its tasks have returned.
func (e *Env) BeginPass(label string) *Pass {
	p := &Pass{env: e, label: label, done: make(chan struct{})}
	e.mu.Lock()
	e.passes[p] = struct{}{}
	e.mu.Unlock()
	return p
}

func (p *Pass) Label() string { return p.label }

// Done is closed once the pass has drained.
func (p *Pass) Done() <-chan struct{} { return p.done }

// Go runs fn on a worker. It returns immediately; fn starts once a worker
// slot is free. Tasks may submit further tasks to the same pass.
func (p *Pass) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire only fails on a cancelled context.
		_ = p.env.sem.Acquire(context.Background(), 1)
		defer p.env.sem.Release(1)
		fn()
	}()
}

// Seal marks the end of submissions from outside the pass. Tasks already
// running may still add more. Calling Seal twice is harmless.
func (p *Pass) Seal() {
	p.seal.Do(func() {
		go func() {
			p.wg.Wait()
			p.env.mu.Lock()
			delete(p.env.passes, p)
			p.env.mu.Unlock()
			p.env.completed.Add(1)
			p.env.logger.Debug("Pass drained.", "pass", p.label)
			close(p.done)
		}()
	})
}
