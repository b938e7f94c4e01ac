package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairedRelayEnableFor(t *testing.T) {
	up, down := NewRelayPair(&Dumb{Name: "up"}, &Dumb{Name: "down"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	t.Run("down relay will be not enabled until up gets released", func(t *testing.T) {
		start := time.Now()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			up.EnableFor(ctx, time.Millisecond*5)
			wg.Done()
		}()

		wg.Add(1)
		go func() {
			down.EnableFor(ctx, time.Millisecond*5)
			wg.Done()
		}()

		wg.Wait()
		assert.GreaterOrEqual(t, time.Since(start), time.Millisecond*10)
	})

	t.Run("pairs do not block each other", func(t *testing.T) {
		otherUp, _ := NewRelayPair(&Dumb{}, &Dumb{})

		start := time.Now()
		var wg sync.WaitGroup
		for _, r := range []Relay{up, otherUp} {
			wg.Add(1)
			go func(r Relay) {
				r.EnableFor(ctx, time.Millisecond*20)
				wg.Done()
			}(r)
		}

		wg.Wait()
		assert.Less(t, time.Since(start), time.Millisecond*40)
	})
}
