package scorer

import "github.com/sells-group/trackscout/internal/model"

// classifyYouTube labels the channel-vs-streaming mismatch and returns the
// opportunity points it contributes. First matching class wins.
//
// A record the video provider never answered scores as unknown: the
// dimension cannot be judged, which is different from an affirmative
// "no channel exists" answer.
func (e *Engine) classifyYouTube(rec *model.MergedRecord) (model.YouTubeClass, float64) {
	t := e.tables.YouTube

	if !rec.YouTubeQueried {
		return model.YouTubeUnknown, 0
	}

	listeners := effectiveListeners(rec)

	if rec.Channel == nil {
		if listeners > 0 {
			// Streaming audience with no channel to meet it.
			return model.YouTubeNoPresence, t.NoPresence
		}
		// No channel, but no streaming audience either: there is no
		// mismatch to exploit, which is not a no-presence opportunity.
		return model.YouTubeAdequate, t.Adequate
	}

	ch := rec.Channel
	switch {
	case listeners > 0 && float64(ch.Subscribers) < t.UnderperformRatio*float64(listeners):
		return model.YouTubeUnderperform, t.Underperforming
	case ch.UploadsLast90d < t.InconsistentUploads:
		return model.YouTubeInconsistent, t.InconsistentUploader
	case ch.UploadsLast90d >= t.HighPotentialUploads && ch.Subscribers < t.HighPotentialMaxSubs:
		return model.YouTubeHighPotential, t.HighPotential
	default:
		return model.YouTubeAdequate, t.Adequate
	}
}
