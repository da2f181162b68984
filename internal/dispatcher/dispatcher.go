// Package dispatcher implements the bounded-concurrency job queue: a FIFO
// of queued job ids processed by at most MaxConcurrent workers at a time,
// each running one job through its sandbox end to end.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/TUD-CERT/docleaner/internal/apperr"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

// Dispatcher owns the worker pool that turns QUEUED jobs into SUCCESS or
// ERROR. Enqueue puts a job id on the queue; a single coordinator
// goroutine pulls from it and starts one goroutine per job, at most
// maxConcurrent at a time, each running the per-job sandbox task.
type Dispatcher struct {
	repo     repository.Repository
	blobs    blobstore.Store
	registry *jobtype.Registry
	sandbox  sandbox.Sandbox

	queue chan string
	sem   chan struct{}

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once

	waiters   sync.Map // job id -> chan struct{}, closed on terminal transition
	waitersMu sync.Mutex
}

// New starts a Dispatcher with maxConcurrent workers in flight at once.
func New(repo repository.Repository, blobs blobstore.Store, registry *jobtype.Registry, sb sandbox.Sandbox, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	d := &Dispatcher{
		repo:     repo,
		blobs:    blobs,
		registry: registry,
		sandbox:  sb,
		queue:    make(chan string, 4096),
		sem:      make(chan struct{}, maxConcurrent),
		shutdown: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Enqueue transitions a CREATED job to QUEUED and schedules it for
// dispatch. Fails loudly if the job is not CREATED — that invariant is the
// caller's (jobservice's) responsibility to hold.
func (d *Dispatcher) Enqueue(id string) error {
	j, err := d.repo.FindJob(id)
	if err != nil {
		return err
	}
	if j.Status != job.Created {
		return apperr.New(apperr.InvalidState, fmt.Sprintf("job %s is %s, not created", id, j.Status))
	}
	queued := job.Queued
	if err := d.repo.UpdateJob(id, repository.JobUpdate{Status: &queued}); err != nil {
		return err
	}
	select {
	case d.queue <- id:
		return nil
	case <-d.shutdown:
		return apperr.New(apperr.InvalidState, "dispatcher is shutting down")
	}
}

// Shutdown signals the worker loop to stop accepting new dequeues and
// blocks until every in-flight job has finished (success or error) —
// nothing in flight is cancelled.
func (d *Dispatcher) Shutdown() {
	d.once.Do(func() { close(d.shutdown) })
	d.wg.Wait()
}

// Done returns a channel closed when this Dispatcher finishes processing
// job id. If it already has, the returned channel is already closed; a job
// this Dispatcher never processes gets a channel that is never closed.
func (d *Dispatcher) Done(id string) <-chan struct{} {
	if v, ok := d.waiters.Load(id); ok {
		return v.(chan struct{})
	}
	d.waitersMu.Lock()
	defer d.waitersMu.Unlock()
	if v, ok := d.waiters.Load(id); ok {
		return v.(chan struct{})
	}
	ch := make(chan struct{})
	d.waiters.Store(id, ch)
	return ch
}

func (d *Dispatcher) notifyDone(id string) {
	d.waitersMu.Lock()
	defer d.waitersMu.Unlock()
	if v, ok := d.waiters.Load(id); ok {
		close(v.(chan struct{}))
	} else {
		ch := make(chan struct{})
		close(ch)
		d.waiters.Store(id, ch)
	}
}

// loop is the single coordinator: it admits at most cap(sem) workers at a
// time, spawning one goroutine per dequeued job id, and returns as soon as
// shutdown is signalled. Each spawned worker is counted in wg, so
// Shutdown's wg.Wait is what waits for them to finish.
func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case id := <-d.queue:
			d.sem <- struct{}{}
			d.wg.Add(1)
			go func(jobID string) {
				defer d.wg.Done()
				defer func() { <-d.sem }()
				d.process(jobID)
			}(id)
		case <-d.shutdown:
			return
		}
	}
}

// process is the per-job task: QUEUED -> RUNNING -> {SUCCESS, ERROR}.
func (d *Dispatcher) process(id string) {
	defer d.notifyDone(id)

	j, err := d.repo.FindJob(id)
	if err != nil {
		log.Errorf("dispatcher: job %s vanished before dispatch: %v", id, err)
		return
	}
	if j.Status != job.Queued {
		log.Errorf("dispatcher: job %s is %s, not queued, aborting dispatch", id, j.Status)
		return
	}

	running := job.Running
	if err := d.repo.UpdateJob(id, repository.JobUpdate{Status: &running}); err != nil {
		log.Errorf("dispatcher: job %s: transition to running: %v", id, err)
		return
	}

	jt, ok := d.registry.ByName(j.Type)
	if !ok {
		d.fail(id, fmt.Sprintf("job type %q no longer registered", j.Type))
		return
	}

	src, err := d.blobs.Get(j.SrcKey)
	if err != nil {
		d.fail(id, fmt.Sprintf("fetch source blob: %v", err))
		return
	}

	result, err := d.runSandbox(jt, src, j.Params)
	if err != nil {
		d.fail(id, fmt.Sprintf("sandbox error: %v", err))
		return
	}

	for _, line := range result.Log {
		_ = d.repo.AddToJobLog(id, line)
	}

	metaSrc, metaResult, perr := d.runMetadataProcessor(jt, result)
	if perr != nil {
		_ = d.repo.AddToJobLog(id, "Error during metadata post-processing")
		d.fail(id, perr.Error())
		return
	}

	if !result.Success {
		errStatus := job.Error
		_ = d.repo.UpdateJob(id, repository.JobUpdate{Status: &errStatus, ClearPayload: true})
		return
	}

	success := job.Success
	if err := d.repo.UpdateJob(id, repository.JobUpdate{
		Status:         &success,
		Result:         result.Result,
		MetadataSrc:    &metaSrc,
		MetadataResult: &metaResult,
	}); err != nil {
		log.Errorf("dispatcher: job %s: persist success: %v", id, err)
	}
}

// runSandbox invokes the sandbox, converting a panic into an error the
// same way the §4.6 contract treats any lifecycle failure: contained,
// never propagated past this task.
func (d *Dispatcher) runSandbox(jt jobtype.Type, src []byte, params job.Params) (res sandbox.Result, rerr error) {
	defer func() {
		if r := recover(); r != nil {
			rerr = fmt.Errorf("sandbox panicked: %v", r)
		}
	}()
	return d.sandbox.Process(context.Background(), jt.Image, src, params)
}

// runMetadataProcessor invokes the job type's pure metadata function on
// both raw dumps. A panicking processor is contained here exactly like a
// failing sandbox: it becomes a job-scoped ERROR, not a crashed worker.
func (d *Dispatcher) runMetadataProcessor(jt jobtype.Type, result sandbox.Result) (src, res metadata.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metadata processor panicked: %v", r)
		}
	}()
	src = jt.Process(result.MetadataSrc)
	res = jt.Process(result.MetadataResult)
	return src, res, nil
}

func (d *Dispatcher) fail(id, reason string) {
	_ = d.repo.AddToJobLog(id, reason)
	errStatus := job.Error
	if err := d.repo.UpdateJob(id, repository.JobUpdate{Status: &errStatus, ClearPayload: true}); err != nil {
		log.Errorf("dispatcher: job %s: persist error state: %v", id, err)
	}
}
