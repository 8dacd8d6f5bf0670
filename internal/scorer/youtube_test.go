package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/trackscout/internal/model"
)

func TestClassifyYouTube(t *testing.T) {
	e := New(nil)

	cases := []struct {
		name      string
		queried   bool
		listeners int64
		channel   *model.ChannelStats
		class     model.YouTubeClass
		points    float64
	}{
		{
			name:  "never queried is unknown",
			class: model.YouTubeUnknown, points: 0,
		},
		{
			name: "no channel with audience", queried: true, listeners: 50_000,
			class: model.YouTubeNoPresence, points: 25,
		},
		{
			name: "no channel and no audience", queried: true,
			class: model.YouTubeAdequate, points: 0,
		},
		{
			name: "subscribers far below listeners", queried: true, listeners: 100_000,
			channel: &model.ChannelStats{Subscribers: 2_000, UploadsLast90d: 8},
			class:   model.YouTubeUnderperform, points: 18,
		},
		{
			name: "rarely uploads", queried: true, listeners: 20_000,
			channel: &model.ChannelStats{Subscribers: 5_000, UploadsLast90d: 1},
			class:   model.YouTubeInconsistent, points: 12,
		},
		{
			name: "active small channel", queried: true, listeners: 20_000,
			channel: &model.ChannelStats{Subscribers: 5_000, UploadsLast90d: 9},
			class:   model.YouTubeHighPotential, points: 15,
		},
		{
			name: "large consistent channel", queried: true, listeners: 200_000,
			channel: &model.ChannelStats{Subscribers: 500_000, UploadsLast90d: 10},
			class:   model.YouTubeAdequate, points: 0,
		},
		{
			name: "no listener signal falls through ratio check", queried: true,
			channel: &model.ChannelStats{Subscribers: 100, UploadsLast90d: 4},
			class:   model.YouTubeAdequate, points: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &model.MergedRecord{
				YouTubeQueried:  tc.queried,
				LastFMListeners: tc.listeners,
				Channel:         tc.channel,
			}
			class, pts := e.classifyYouTube(rec)
			assert.Equal(t, tc.class, class)
			assert.Equal(t, tc.points, pts)
		})
	}
}
