package transcript

// Clip is one audio payload submitted for transcription. It is owned
// by the caller for the duration of a single orchestrator call and
// never retained past it.
type Clip struct {
	Name string
	MIME string
	Data []byte
}

func (c Clip) Size() int {
	return len(c.Data)
}

// ProgressFunc receives per-call progress as a fraction in [0,1].
type ProgressFunc func(fraction float64)

// Options configures one transcription call. SpeakerDiarization and
// HighAccuracy are entitlement-gated at the caller boundary, not here.
type Options struct {
	Timestamps         bool
	SpeakerDiarization bool
	HighAccuracy       bool
	OnProgress         ProgressFunc

	// SkipForcedAttempt disables the optimistic engine attempt when
	// the engine is not ready, going straight to the simulator.
	SkipForcedAttempt bool
}

// Segment is one time-stamped span of the transcript. Segments are
// contiguous and non-overlapping, covering the text in original order.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Speaker owns a subset of segment ids. Across all speakers the sets
// partition {0..len(segments)-1}.
type Speaker struct {
	ID       int   `json:"id"`
	Segments []int `json:"segments"`
}

// Result is the canonical transcription shape. Segments is empty
// unless timestamps were requested; Speakers is empty unless
// diarization was requested and segments exist.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Speakers []Speaker `json:"speakers,omitempty"`
}

// DegradeReason explains why a call fell back from the real engine.
type DegradeReason string

const (
	DegradeNone           DegradeReason = ""
	DegradeEngineFailed   DegradeReason = "engine-failed"
	DegradeForcedAttempt  DegradeReason = "forced-attempt-failed"
	DegradeEngineNotReady DegradeReason = "engine-not-ready"
)

// Outcome is the terminal shape of one transcription call. The
// orchestrator never raises: failures are folded into Err with
// Success false.
type Outcome struct {
	Success       bool
	Filename      string
	JobID         string
	Data          Result
	UsedRealModel bool
	Degraded      DegradeReason
	Err           error
}

// ErrorMessage returns the user-facing failure text.
func (o Outcome) ErrorMessage() string {
	if o.Success || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
