package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloserOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	closes := 0
	closer := closerFunc(func() error {
		closes++
		close(unblock)
		return nil
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errors.New("closed")
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closes)
}

func TestRunWithContextCloserOnReturn(t *testing.T) {
	closes := 0
	closer := closerFunc(func() error {
		closes++
		return nil
	})
	failure := errors.New("failure")
	err := RunWithContextCloser(context.Background(), closer, func() error {
		return failure
	})
	require.Equal(t, failure, err)
	require.Equal(t, 1, closes)
}

func TestRunnerStopsOthers(t *testing.T) {
	failure := errors.New("failure")
	r := NewRunner()
	r.Go(
		NamedRun("failing", RunFunc(func(ctx context.Context) error {
			return failure
		})),
		NamedRun("waiting", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
	)
	require.Equal(t, failure, r.Wait())
}
