package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/pkg/circuitbreaker"
	"github.com/eduaid/eduaid-hub/pkg/retry"
)

func TestDefaultProvider_BuildsCatalog(t *testing.T) {
	c, err := domain.Load(context.Background(), NewDefaultProvider())
	require.NoError(t, err)

	assert.Len(t, c.Lessons(), 6)
	assert.Equal(t, "Counting to Ten", c.LessonTitle(1))

	unlocked := c.ActivitiesForLesson(1)
	require.Len(t, unlocked, 2)
	assert.Equal(t, domain.ActivityID(10), unlocked[0].ID)
	assert.Equal(t, domain.ActivityID(11), unlocked[1].ID)

	free, ok := c.Activity(20)
	require.True(t, ok)
	assert.False(t, free.IsGated())
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lessons:
  - id: 7
    title: Fractions
activities:
  - id: 70
    title: Pizza Slices
    due_timestamp: 2026-03-05T18:00:00Z
`), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	acts, err := p.GetActivities(context.Background())
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.NotNil(t, acts[0].DueTimestamp)
	assert.True(t, acts[0].DueTimestamp.Equal(time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)))

	_, err = NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func fastRetrier() *retry.Retrier {
	return retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(2*time.Millisecond))
}

func TestHTTPProvider_ReadsEnvelopeAndRetries(t *testing.T) {
	var lessonHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/lessons":
			if lessonHits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"code":"TEMPORARILY_UNAVAILABLE","message":"warming up"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1,"title":"Counting"}]}`))
		case "/api/activities":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":10,"title":"Match","relatedLessonId":1,"totalQuestions":5}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL + "/api/", APIKey: "k", Retrier: fastRetrier()})
	require.NoError(t, err)

	c, err := domain.Load(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, lessonHits.Load())
	assert.Equal(t, "Counting", c.LessonTitle(1))
	a, ok := c.Activity(10)
	require.True(t, ok)
	assert.True(t, a.UnlockedBy(1))
	assert.Equal(t, circuitbreaker.StateClosed, p.BreakerState())
}

func TestHTTPProvider_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"FORBIDDEN","message":"bad key"}`))
	}))
	defer srv.Close()

	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1))
	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Retrier: fastRetrier(), Breaker: breaker})
	require.NoError(t, err)

	_, err = p.GetLessons(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "bad key", apiErr.Message)
	assert.EqualValues(t, 1, hits.Load())

	// one failure opens the test breaker
	_, err = p.GetActivities(context.Background())
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.EqualValues(t, 1, hits.Load())
}

func TestHTTPProvider_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Retrier: fastRetrier()})
	require.NoError(t, err)

	_, err = p.GetLessons(context.Background())
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestNewHTTPProvider_RequiresURL(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{})
	assert.Error(t, err)
}

func TestHTTPProvider_RateLimitHoldsBreakerOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithTimeout(time.Second))
	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Retrier: fastRetrier(), Breaker: breaker})
	require.NoError(t, err)

	before := time.Now()
	_, err = p.GetLessons(context.Background())
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, p.BreakerState())
	assert.True(t, breaker.OpenUntil().After(before.Add(time.Minute)))
}
