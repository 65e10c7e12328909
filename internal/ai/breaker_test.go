package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Execute(func() error { return boom }, nil), boom)
	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Execute(func() error { return nil }, nil), ErrCircuitOpen)

	now = now.Add(time.Second)
	assert.NoError(t, b.Execute(func() error { return nil }, nil))
	assert.False(t, b.Open())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(3, time.Second)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return boom }, nil)
	}
	assert.True(t, b.Open())

	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return boom }, nil)
	assert.True(t, b.Open(), "a failed trial reopens immediately")
}

func TestBreaker_CancellationDoesNotCount(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	err := b.Execute(func() error { return context.Canceled }, countsAgainstBreaker)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Open())
}

func TestBreaker_HalfOpenAdmitsOneTrialCall(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }
	_ = b.Execute(func() error { return errors.New("boom") }, nil)
	now = now.Add(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- b.Execute(func() error {
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started

	assert.ErrorIs(t, b.Execute(func() error { return nil }, nil), ErrCircuitOpen)

	close(release)
	assert.NoError(t, <-trialDone)
	assert.NoError(t, b.Execute(func() error { return nil }, nil), "closed again after the trial succeeds")
}

func TestBreaker_UncountedTrialAllowsNextTrial(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }
	_ = b.Execute(func() error { return errors.New("boom") }, nil)
	now = now.Add(time.Second)

	err := b.Execute(func() error { return context.Canceled }, countsAgainstBreaker)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, b.Execute(func() error { return nil }, nil))
	assert.False(t, b.Open())
}
