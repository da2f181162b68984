package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

func TestDummyReturnsFixedResult(t *testing.T) {
	d := &sandbox.Dummy{Fixed: sandbox.Result{Success: true, Result: []byte("clean")}}
	res, err := d.Process(context.Background(), "any-image", []byte("src"), job.Params{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []byte("clean"), res.Result)
	assert.Equal(t, 1, d.Calls())
}

func TestDummyFailReportsUnsuccessfulNotError(t *testing.T) {
	d := &sandbox.Dummy{Fail: true}
	res, err := d.Process(context.Background(), "any-image", []byte("src"), job.Params{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Log)
}

func TestDummyGateBlocksUntilReleased(t *testing.T) {
	gate := make(chan struct{})
	d := &sandbox.Dummy{Gate: gate, Fixed: sandbox.Result{Success: true}}

	done := make(chan struct{})
	go func() {
		_, _ = d.Process(context.Background(), "any-image", nil, job.Params{})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Process returned before the gate was released")
	default:
	}

	close(gate)
	<-done
}

func TestDummyGateRespectsContextCancellation(t *testing.T) {
	gate := make(chan struct{})
	d := &sandbox.Dummy{Gate: gate}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Process(ctx, "any-image", nil, job.Params{})
	assert.Error(t, err)
}
