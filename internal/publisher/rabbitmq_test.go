package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

func TestNewEpisodeMessage(t *testing.T) {
	now := time.Date(2025, 3, 21, 12, 0, 0, 0, time.FixedZone("MSK", 3*60*60))
	release := &domain.Release{
		ShowID:   42,
		ShowName: "Lost",
		Episode:  domain.Episode{ID: 900, Season: 6, Number: 17, Title: "The End"},
		Notified: 3,
	}

	body, err := json.Marshal(newEpisodeMessage(release, now))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))

	assert.Equal(t, "episode.released", fields["event"])
	assert.Equal(t, float64(42), fields["show_id"])
	assert.Equal(t, "Lost", fields["show_name"])
	assert.Equal(t, float64(3), fields["notified"])
	assert.Equal(t, "2025-03-21T09:00:00Z", fields["timestamp"])

	episode, ok := fields["episode"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(900), episode["id"])
}
