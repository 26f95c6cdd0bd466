package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/messaging"
)

var at = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestMetrics_CountsBusEvents(t *testing.T) {
	m := New(false)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Observer: m})
	defer bus.Close()
	require.NoError(t, m.Register(bus))

	events := []shared.Event{
		shared.NewLessonStartedEvent("u1", 1, at, at),
		shared.NewLessonCompletedEvent("u1", 1, 1, []int{10}, at),
		shared.NewLessonExpiredEvent("u1", 2, 30, at, at),
		shared.NewActivityCompletedEvent("u1", 10, 4, 5, 80, at),
		shared.NewBadgeAwardedEvent("u1", "Perfectionist", 7, at),
		shared.NewNotificationAddedEvent("u1", 1, "success", "Lesson Completed!", at),
	}
	for _, e := range events {
		require.NoError(t, bus.Publish(e))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lessons.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lessons.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lessons.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activities))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.badges.WithLabelValues("Perfectionist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("lesson.expired")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.activityScore))
}

func TestMetrics_HandlerFailures(t *testing.T) {
	m := New(false)
	m.ObserveHandler(shared.EventLessonStarted, time.Millisecond, errors.New("x"))
	m.ObserveHandler(shared.EventLessonStarted, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("lesson.started")))
}

func TestMetrics_RemotePayloadNumbers(t *testing.T) {
	v, ok := number(float64(75))
	assert.True(t, ok)
	assert.Equal(t, 75.0, v)

	_, ok = number("75")
	assert.False(t, ok)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(true)
	m.ObserveSweep(3)
	m.ObserveHTTP(http.MethodGet, "/api/v1/dashboard", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "eduaid_session_active 3"))
	assert.Contains(t, body, `eduaid_http_requests_total{method="GET",route="/api/v1/dashboard",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_ObserveJob(t *testing.T) {
	m := New(false)
	m.ObserveJob("sweep_lessons", 20*time.Millisecond, nil)
	m.ObserveJob("sweep_lessons", 10*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("sweep_lessons", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("sweep_lessons", "failure")))
}
