package health

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusOK })
	c.Register("model", func(ctx context.Context) Status { return StatusOK })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusOK })
	c.Register("model", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_DegradedStillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("model", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

func TestStoreCheck(t *testing.T) {
	assert.Equal(t, StatusOK, StoreCheck(fakePinger{})(context.Background()))
	assert.Equal(t, StatusDown, StoreCheck(fakePinger{err: errors.New("closed")})(context.Background()))
}
