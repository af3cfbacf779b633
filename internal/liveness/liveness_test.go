package liveness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestTicket(t *testing.T) {
	var tr Tracker

	first := tr.Ticket()
	assert.True(t, first.Live())

	tr.Advance()
	assert.False(t, first.Live())
	assert.Equal(t, uint64(1), tr.Generation())

	second := tr.Ticket()
	assert.True(t, second.Live())

	tr.Close()
	assert.False(t, second.Live())
	assert.True(t, tr.Closed())
	assert.False(t, tr.Ticket().Live())

	assert.False(t, Ticket{}.Live())
}

func TestRun_AppliesLiveResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr Tracker
	var got string
	p := Run(context.Background(), &tr, func(ctx context.Context) (string, error) {
		return "profile", nil
	}, func(v string, err error) {
		got = v
	})

	assert.True(t, p.Wait())
	assert.Equal(t, "profile", got)
}

func TestRun_DiscardsAfterAdvance(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr Tracker
	started := make(chan struct{})
	applied := false

	p := Run(context.Background(), &tr, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int, error) {
		applied = true
	})

	<-started
	tr.Advance()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call was not cancelled")
	}
	assert.False(t, p.Wait())
	assert.False(t, applied)
}

func TestRun_DiscardsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr Tracker
	release := make(chan struct{})
	applied := false

	p := Run(context.Background(), &tr, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	}, func(int, error) {
		applied = true
	})

	tr.Close()
	close(release)

	assert.False(t, p.Wait())
	assert.False(t, applied)
}

func TestRun_ErrorsAreApplied(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr Tracker
	boom := errors.New("boom")
	var got error
	p := Run(context.Background(), &tr, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, boom
	}, func(_ struct{}, err error) {
		got = err
	})

	assert.True(t, p.Wait())
	assert.ErrorIs(t, got, boom)
}

func TestRun_OnClosedTracker(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr Tracker
	tr.Close()

	p := Run(context.Background(), &tr, func(ctx context.Context) (error, error) {
		return ctx.Err(), nil
	}, func(error, error) {})

	assert.False(t, p.Wait())
}

func TestRun_AdvanceWaitsForApply(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 500; i++ {
		var tr Tracker
		release := make(chan struct{})
		g0 := tr.Generation()
		var sawAdvance bool

		p := Run(context.Background(), &tr, func(ctx context.Context) (int, error) {
			<-release
			return 1, nil
		}, func(int, error) {
			time.Sleep(50 * time.Microsecond)
			sawAdvance = tr.Generation() != g0
		})

		advanced := make(chan struct{})
		go func() {
			defer close(advanced)
			<-release
			tr.Advance()
		}()
		close(release)

		applied := p.Wait()
		<-advanced

		assert.False(t, sawAdvance, "generation changed while a result was being applied")
		if applied {
			assert.Equal(t, g0+1, tr.Generation())
		}
	}
}
