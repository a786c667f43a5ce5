package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

type countingReloader struct {
	calls chan struct{}
	err   error
}

func (r *countingReloader) Reload() error {
	r.calls <- struct{}{}
	return r.err
}

func TestReloadOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	r := &countingReloader{calls: make(chan struct{}, 2), err: errors.New("bad json")}

	stopped := make(chan struct{})
	go func() {
		reloadOnSignal(ctx, sigs, r)
		close(stopped)
	}()

	for i := 0; i < 2; i++ {
		sigs <- syscall.SIGHUP
		select {
		case <-r.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("reload %d was not triggered", i+1)
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("reloadOnSignal did not return after cancel")
	}
}
