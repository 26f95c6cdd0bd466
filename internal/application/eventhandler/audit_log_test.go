package eventhandler

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

func TestAuditLogHandler_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	h := NewAuditLogHandler(logger.New(logger.Options{Output: &buf, Level: logger.LevelInfo, Format: "json"}))
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.Handle(shared.NewLessonStartedEvent("u1", 1, at, at.Add(time.Hour))))
	assert.Empty(t, buf.String())

	require.NoError(t, h.Handle(shared.NewLessonExpiredEvent("u1", 2, 40, at, at)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "domain event", entry["message"])
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, "lesson.expired", entry["event_type"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.EqualValues(t, 40, entry["progress_percent"])
}
