package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_AfterNonPositiveIsReady(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration should be ready")
	}
}

func TestFakeClock_Ticker(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		select {
		case <-tk.C:
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
	assert.Equal(t, 1, c.Pending())

	tk.Stop()
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_WaitForWaiters(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "goroutine was not released")
	}
}

func TestFakeClock_TickerPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { Fake(epoch).NewTicker(0) })
}
