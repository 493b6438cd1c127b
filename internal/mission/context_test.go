package mission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	r := ctx.GetRun()
	assert.Equal(t, "No mission loaded", r.Name)
	assert.Zero(t, r.Step)
}

func TestContext_StartAndAdvance(t *testing.T) {
	ctx := NewContext()
	now := time.Unix(1700000000, 0)

	ctx.Advance(3, 0.09)
	ctx.Start("f16-doublet", now)
	r := ctx.GetRun()
	assert.Equal(t, "f16-doublet", r.Name)
	assert.Zero(t, r.Step, "start resets progress")
	assert.Equal(t, now, r.Started)

	ctx.Advance(10, 0.3)
	attrs := ctx.LogAttrs()
	assert.Len(t, attrs, 3)
	assert.Equal(t, "f16-doublet", attrs[0].Value.String())
	assert.Equal(t, int64(10), attrs[1].Value.Int64())
	assert.Equal(t, 0.3, attrs[2].Value.Float64())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(step int) {
			defer wg.Done()
			ctx.Advance(step, float64(step))
		}(i)
		go func() {
			defer wg.Done()
			_ = ctx.LogAttrs()
		}()
	}
	wg.Wait()
}
