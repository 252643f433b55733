package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type statusChanged struct {
	status string
}

type otherEvent struct{}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_PublishWarnsWithoutSubscribers(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *statusChanged) {
		t.Error("should not be called")
	})

	publisher.Publish(&otherEvent{})

	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_DeliversToMatchingHandler(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got string
	publisher.Subscribe(func(e *statusChanged) {
		got = e.status
	})

	publisher.Publish(&statusChanged{status: "Processing"})

	require.Equal(t, "Processing", got)
}

func TestPublisher_UnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	unsubscribe := publisher.Subscribe(func(e *statusChanged) { calls += 10 })
	publisher.Subscribe(func(e *statusChanged) { calls++ })
	require.Equal(t, 2, publisher.SubscribersCount())

	unsubscribe()
	publisher.Publish(&statusChanged{})

	require.Equal(t, 1, publisher.SubscribersCount())
	require.Equal(t, 1, calls)
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *statusChanged) {}, []any{&statusChanged{}}))
	require.False(t, MatchSignature(func(e *statusChanged) {}, []any{&otherEvent{}}))
	require.False(t, MatchSignature(func(e *statusChanged) {}, []any{}))
	require.False(t, MatchSignature(func(e *statusChanged) {}, []any{&statusChanged{}, &statusChanged{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	require.True(t, MatchSignature(func(e *statusChanged) {}, []any{nil}))
	require.False(t, MatchSignature("not a func", []any{}))
}

func TestPublisher_PanicIsLoggedAndOtherHandlersRun(t *testing.T) {
	log, buf := bufferedLogger(logrus.ErrorLevel)
	publisher := NewEventPublisher(log)

	first, third := false, false
	publisher.Subscribe(func(e *statusChanged) { first = true })
	publisher.Subscribe(func(e *statusChanged) { panic("handler 2 panic") })
	publisher.Subscribe(func(e *statusChanged) { third = true })

	publisher.Publish(&statusChanged{status: "Errored"})

	require.True(t, first)
	require.True(t, third)
	require.Contains(t, buf.String(), "panicked")
	require.Contains(t, buf.String(), "handler 2 panic")
}

func TestPublisher_AllHandlersPanickingCountsAsUnhandled(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *statusChanged) { panic("always panics") })

	publisher.Publish(&statusChanged{})

	require.Contains(t, buf.String(), "no matching subscribers")
}

func TestPublisher_PublishE(t *testing.T) {
	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		require.ErrorIs(t, publisher.PublishE(&statusChanged{}), ErrNoSubscribers)
	})

	t.Run("joins handler errors", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *statusChanged) error { return err1 })
		publisher.Subscribe(func(e *statusChanged) error { return err2 })

		err := publisher.PublishE(&statusChanged{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic surfaces as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := false
		publisher.Subscribe(func(e *statusChanged) error { panic("boom") })
		publisher.Subscribe(func(e *statusChanged) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&statusChanged{}))
		require.True(t, called)
	})

	t.Run("invalid return signature", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(func(e *statusChanged) int { return 1 })
		require.ErrorIs(t, publisher.PublishE(&statusChanged{}), ErrInvalidHandlerReturn)
	})
}

func TestPublisher_ConcurrentSubscribeAndPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var mu sync.Mutex
	seen := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Subscribe(func(e *statusChanged) {
				mu.Lock()
				seen++
				mu.Unlock()
			})
			publisher.Publish(&statusChanged{})
		}()
	}
	wg.Wait()

	require.Equal(t, 20, publisher.SubscribersCount())
	require.Positive(t, seen)
}
