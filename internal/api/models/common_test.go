package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/routekit/internal/api/models"
)

func TestTimestamp_JSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01T12:30:00Z"`, string(data))

	var parsed models.Timestamp
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, ts.Time().Equal(parsed.Time()))
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var ts models.Timestamp
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.NoError(t, json.Unmarshal([]byte(`null`), &ts))
}
