package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendProgressKeepsHistory(t *testing.T) {
	item := &QueueItem{}

	encoded, err := item.AppendProgress(ProgressUpdate{
		Stage:      "research",
		Percentage: 20,
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	item.ProgressUpdates = encoded

	encoded, err = item.AppendProgress(ProgressUpdate{
		Stage:      "writing",
		Percentage: 60,
		Timestamp:  time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	item.ProgressUpdates = encoded

	history := item.ProgressHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "research", history[0].Stage)
	assert.Equal(t, 20, history[0].Percentage)
	assert.Equal(t, "writing", history[1].Stage)
	assert.Equal(t, 60, history[1].Percentage)
}

func TestProgressHistoryEmpty(t *testing.T) {
	item := &QueueItem{}
	assert.Nil(t, item.ProgressHistory())
}

func TestMergeJSONMapOverlayWins(t *testing.T) {
	base := MergeJSONMap(nil, map[string]interface{}{"a": "1", "b": "2"})
	merged := MergeJSONMap(base, map[string]interface{}{"b": "3", "c": "4"})

	assert.Equal(t, "1", merged["a"])
	assert.Equal(t, "3", merged["b"])
	assert.Equal(t, "4", merged["c"])
	// Base is not mutated.
	assert.Equal(t, "2", base["b"])
}

func TestPublishingRecordHasPlatformPost(t *testing.T) {
	record := &PublishingRecord{}
	assert.False(t, record.HasPlatformPost())

	record.PlatformPostID = "item-1"
	assert.True(t, record.HasPlatformPost())
}
