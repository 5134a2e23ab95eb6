package whisper

import "context"

// Handle pairs a loaded engine with the model and language it was
// initialized against, so callers do not re-resolve them per request.
type Handle struct {
	Engine    Engine
	ModelPath string
	Language  string
}

func (h *Handle) Transcribe(ctx context.Context, audioPath string, timestamps, highAccuracy bool) (Output, error) {
	return h.Engine.Transcribe(ctx, Request{
		AudioPath:    audioPath,
		ModelPath:    h.ModelPath,
		Language:     h.Language,
		Timestamps:   timestamps,
		HighAccuracy: highAccuracy,
	})
}
