package sandbox

import (
	"context"
	"sync/atomic"

	"github.com/TUD-CERT/docleaner/internal/job"
)

// Dummy is a Sandbox test double. Every call returns Fixed unless Fail is
// set, in which case it reports a sandbox-side failure (Success: false).
// Gate, if non-nil, is read once before returning, letting tests hold a
// job in RUNNING to exercise the concurrency cap (scenario: a goroutine
// blocks on Gate until the test closes it).
type Dummy struct {
	Fixed Result
	Fail  bool
	Gate  chan struct{}

	// calls counts invocations of Process, for assertions on how many
	// jobs a dispatcher actually ran concurrently. Process runs on a
	// dispatcher worker goroutine per job, so this must be safe for
	// concurrent increment.
	calls int64
}

// Calls returns the number of times Process has been invoked so far.
func (d *Dummy) Calls() int {
	return int(atomic.LoadInt64(&d.calls))
}

func (d *Dummy) Process(ctx context.Context, image string, src []byte, params job.Params) (Result, error) {
	atomic.AddInt64(&d.calls, 1)
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if d.Fail {
		return Result{Success: false, Log: []string{"dummy sandbox forced failure"}}, nil
	}
	return d.Fixed, nil
}
