package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairtimer/pairtimer-go/pkg/schedule"
)

func newCron(t *testing.T) (*CronScheduler, chan Alert) {
	t.Helper()
	s, err := schedule.New(schedule.Config{})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	alerts := make(chan Alert, 4)
	return NewCronScheduler(s, func(a Alert) { alerts <- a }, nil), alerts
}

func TestArmDelivers(t *testing.T) {
	c, alerts := newCron(t)
	id := uuid.New()

	require.NoError(t, c.Arm(id, time.Now().Add(20*time.Millisecond), "Tea", "Timer finished"))
	assert.True(t, c.Armed(id))

	select {
	case a := <-alerts:
		assert.Equal(t, id, a.TimerID)
		assert.Equal(t, "Tea", a.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}
	assert.Eventually(t, func() bool { return !c.Armed(id) }, time.Second, 5*time.Millisecond)
}

func TestDisarmCancels(t *testing.T) {
	c, alerts := newCron(t)
	id := uuid.New()

	require.NoError(t, c.Arm(id, time.Now().Add(100*time.Millisecond), "Tea", ""))
	c.Disarm(id)
	assert.False(t, c.Armed(id))

	select {
	case <-alerts:
		t.Fatal("disarmed alert was delivered")
	case <-time.After(250 * time.Millisecond):
	}

	// Disarming again is harmless.
	c.Disarm(id)
}

func TestRearmReplaces(t *testing.T) {
	c, alerts := newCron(t)
	id := uuid.New()

	require.NoError(t, c.Arm(id, time.Now().Add(time.Hour), "old", ""))
	require.NoError(t, c.Arm(id, time.Now().Add(20*time.Millisecond), "new", ""))

	select {
	case a := <-alerts:
		assert.Equal(t, "new", a.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}
}
