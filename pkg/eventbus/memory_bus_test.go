package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"hyperagent.v1.cycle.g.done", "hyperagent.v1.cycle.g.done", true},
		{"hyperagent.v1.>", "hyperagent.v1.cycle.g.done", true},
		{"hyperagent.v1.cycle.>", "hyperagent.v1.goal.g.done", false},
		{"hyperagent.v1.*.g.*", "hyperagent.v1.goal.g.done", true},
		{"hyperagent.v1.*.g.*", "hyperagent.v1.goal.h.done", false},
		{"hyperagent.v1.*.g.*", "hyperagent.v1.goal.g", false},
		{">", "anything.at.all", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, subjectMatches(tt.pattern, tt.subject))
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "hyperagent.v1.goal.goal:a_b.agent_goal_completed", Subject(DomainGoal, "goal:a.b", EventGoalCompleted))
	assert.Equal(t, "hyperagent.v1.cycle.unknown.agent_cycle_failed", Subject(DomainCycle, "", EventCycleFailed))
	assert.True(t, subjectMatches(GoalWildcardSubject("goal:a.b"), Subject(DomainCycle, "goal:a.b", EventImpasse)))
	assert.True(t, subjectMatches(DomainWildcardSubject(DomainGoal), Subject(DomainGoal, "g", EventGoalFailed)))
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewMemoryBus()
	defer bus.Close()

	goalSub, err := bus.Subscribe(GoalWildcardSubject("g1"), 4)
	require.NoError(t, err)
	allSub, err := bus.Subscribe(AllSubjects(), 4)
	require.NoError(t, err)
	assert.Equal(t, AllSubjects(), allSub.Pattern())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, Subject(DomainCycle, "g1", EventCycleCompleted), []byte("a")))
	require.NoError(t, bus.Publish(ctx, Subject(DomainCycle, "g2", EventCycleCompleted), []byte("b")))

	msg := <-goalSub.C()
	assert.Equal(t, []byte("a"), msg.Payload)
	select {
	case extra := <-goalSub.C():
		t.Fatalf("unexpected message %q", extra.Subject)
	default:
	}

	assert.Equal(t, []byte("a"), (<-allSub.C()).Payload)
	assert.Equal(t, []byte("b"), (<-allSub.C()).Payload)
}

func TestMemoryBus_Validation(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	_, err := bus.Subscribe("", 1)
	assert.Error(t, err)
	assert.Error(t, bus.Publish(context.Background(), "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, "a.b", nil), context.Canceled)
}

func TestMemoryBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	sub, err := bus.Subscribe(">", 1)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), "a.b", []byte{byte(i)}))
	}
	assert.Equal(t, []byte{0}, (<-sub.C()).Payload)
	assert.Len(t, sub.C(), 0)
}

func TestMemoryBus_PayloadIsCopied(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	sub, err := bus.Subscribe(">", 1)
	require.NoError(t, err)

	payload := []byte("abc")
	require.NoError(t, bus.Publish(context.Background(), "a", payload))
	payload[0] = 'z'
	assert.Equal(t, []byte("abc"), (<-sub.C()).Payload)
}

func TestMemoryBus_CloseSubscription(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	sub, err := bus.Subscribe(">", 1)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after the only subscriber left must not panic.
	assert.NoError(t, bus.Publish(context.Background(), "a", nil))
}

func TestMemoryBus_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewMemoryBus()
	sub, err := bus.Subscribe(">", 1)
	require.NoError(t, err)
	assert.True(t, bus.Healthy())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.False(t, bus.Healthy())

	select {
	case _, open := <-sub.C():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}
	assert.ErrorIs(t, bus.Publish(context.Background(), "a", nil), ErrBusClosed)
	_, err = bus.Subscribe(">", 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMemoryBus_ConcurrentPublishAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewMemoryBus()
	subs := make([]*Subscription, 8)
	for i := range subs {
		sub, err := bus.Subscribe(">", 1)
		require.NoError(t, err)
		subs[i] = sub
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = bus.Publish(context.Background(), "a.b", []byte("x"))
		}
	}()
	for _, sub := range subs {
		_ = sub.Close()
	}
	<-done
	require.NoError(t, bus.Close())
}
