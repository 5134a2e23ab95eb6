package whisper

import "context"

// Request describes one inference call. The engine always runs
// task=transcribe with 30s windows and 5s stride internally; the only
// decoding knob exposed upstream is the HighAccuracy toggle, which
// widens the beam.
type Request struct {
	AudioPath    string
	ModelPath    string
	Language     string
	Timestamps   bool
	HighAccuracy bool
}

// Chunk is one time-stamped span of the transcript. Start and End are
// seconds from the beginning of the audio.
type Chunk struct {
	Start float64
	End   float64
	Text  string
}

// Output is the raw engine result before normalization into the
// application transcript shape.
type Output struct {
	Text   string
	Chunks []Chunk
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (Output, error)
}
