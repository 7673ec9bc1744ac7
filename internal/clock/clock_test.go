package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClockUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	now := New(loc).Now()
	assert.Equal(t, "Asia/Seoul", now.Location().String())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestRealClockNilLocation(t *testing.T) {
	assert.Equal(t, time.Local, RealClock{}.Now().Location())
}

func TestFixedAndFuncClock(t *testing.T) {
	at := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, at, FixedClock{T: at}.Now())

	var c Clock = FuncClock(func() time.Time { return at })
	assert.Equal(t, at, c.Now())
}
