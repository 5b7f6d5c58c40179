package merkle

import "golang.org/x/sync/errgroup"

// ParallelThreshold is the smallest layer that is split across workers.
// Smaller layers are hashed on the calling goroutine.
const ParallelThreshold = 1024

// Option configures root computation.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers hashes each layer on up to n goroutines. Every layer completes
// before the next begins, so the result is identical to sequential hashing.
// n <= 1 keeps computation sequential.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func newOptions(opts []Option) options {
	o := options{workers: 1}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// forEach calls fn for every index in [0, n). Large ranges are split into
// contiguous chunks, one per worker; forEach returns after all have finished.
func (o options) forEach(n int, fn func(i int)) {
	if o.workers <= 1 || n < ParallelThreshold {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	chunk := (n + o.workers - 1) / o.workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
