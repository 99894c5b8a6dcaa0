package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The background scheduler must serve the oldest submission first so a
// young task that keeps failing cannot starve an older deferred one.
func TestEligibilityQueryOrdersByCreationTime(t *testing.T) {
	assert.Contains(t, listEligibleForRetryQuery, "ORDER BY created_at ASC")
	assert.NotContains(t, listEligibleForRetryQuery, "ORDER BY updated_at")
}

// Every transition out of processing must be a conditional update so the
// reaper and a live worker cannot both land an outcome for the same task.
func TestTerminalTransitionsAreConditionalOnProcessing(t *testing.T) {
	for name, query := range map[string]string{
		"MarkCompleted":              markCompletedQuery,
		"MarkFailed":                 markFailedQuery,
		"MarkPendingBackgroundRetry": markPendingBackgroundRetryQuery,
	} {
		assert.True(t, strings.Contains(query, "AND status ="),
			"%s must predicate on the current status", name)
	}
}
