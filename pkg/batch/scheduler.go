// Package batch runs independent units of work with bounded parallelism and
// paced dispatch.
package batch

import (
	"context"
	"sync"
	"time"
)

// Unit is one independent piece of work.
type Unit[T any] func(ctx context.Context) (T, error)

// Result is the outcome slot for one unit, stored at the unit's input index.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Success() bool {
	return r.Err == nil
}

// Options control one scheduler run.
type Options struct {
	// Concurrency is the maximum number of units in flight. Values below 1
	// mean 1.
	Concurrency int

	// Interval is the minimum spacing between consecutive dispatches across
	// all workers. Zero disables pacing.
	Interval time.Duration
}

// Run executes the units with at most Concurrency in flight and consecutive
// dispatches spaced at least Interval apart. The returned slice has the same
// length and order as units regardless of completion order. A failing unit
// never cancels or delays the others; its error lands in its result slot.
//
// There is no mid-batch cancellation: a cancelled context stops workers from
// claiming new units, already-claimed ones run to completion and units never
// dispatched report ctx.Err().
func Run[T any](ctx context.Context, units []Unit[T], opts Options) []Result[T] {
	results := make([]Result[T], len(units))
	if len(units) == 0 {
		return results
	}

	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(units) {
		workers = len(units)
	}

	d := &dispatcher{interval: opts.Interval, total: len(units)}

	var wg sync.WaitGroup

	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()

			for {
				index, ok := d.claim(ctx)
				if !ok {
					return
				}

				value, err := units[index](ctx)
				results[index] = Result[T]{Value: value, Err: err}
			}
		}()
	}

	wg.Wait()

	// Units never dispatched because the context expired report the
	// context error instead of a zero result.
	if err := ctx.Err(); err != nil {
		for i := d.claimed(); i < len(units); i++ {
			results[i] = Result[T]{Err: err}
		}
	}

	return results
}

// dispatcher hands out unit indexes one at a time, enforcing the
// inter-dispatch interval globally.
type dispatcher struct {
	mu       sync.Mutex
	interval time.Duration
	total    int
	cursor   int
	last     time.Time
}

func (d *dispatcher) claim(ctx context.Context) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if ctx.Err() != nil || d.cursor >= d.total {
			return 0, false
		}

		if d.interval <= 0 || d.last.IsZero() {
			break
		}

		wait := d.interval - time.Since(d.last)
		if wait <= 0 {
			break
		}

		// Another worker may claim while we sleep, so re-check the
		// spacing after waking up.
		d.mu.Unlock()
		select {
		case <-time.After(wait):
			d.mu.Lock()
		case <-ctx.Done():
			d.mu.Lock()
			return 0, false
		}
	}

	index := d.cursor
	d.cursor++
	d.last = time.Now()

	return index, true
}

func (d *dispatcher) claimed() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cursor
}
