package transcript

import "github.com/voxscribe/voxscribe/internal/whisper"

// FromEngineOutput maps raw engine output into the canonical result
// shape. Segments are populated only when timestamps were requested
// and the engine produced timed chunks.
//
// The engine has no native diarization. When it is requested, segments
// are split alternately across two synthetic speakers - an
// acknowledged approximation.
func FromEngineOutput(out whisper.Output, opts Options) Result {
	result := Result{Text: out.Text, Segments: []Segment{}}

	if opts.Timestamps {
		for i, chunk := range out.Chunks {
			result.Segments = append(result.Segments, Segment{
				ID:    i,
				Start: chunk.Start,
				End:   chunk.End,
				Text:  chunk.Text,
			})
		}
	}

	if opts.SpeakerDiarization && len(result.Segments) > 0 {
		even := Speaker{ID: 0, Segments: []int{}}
		odd := Speaker{ID: 1, Segments: []int{}}
		for _, seg := range result.Segments {
			if seg.ID%2 == 0 {
				even.Segments = append(even.Segments, seg.ID)
			} else {
				odd.Segments = append(odd.Segments, seg.ID)
			}
		}
		result.Speakers = []Speaker{even, odd}
	}

	return result
}
