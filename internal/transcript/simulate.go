package transcript

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	simMaxLatency       = 3 * time.Second
	simProgressSteps    = 10
	simSentenceBreak    = 0.15
	simSentenceWordCap  = 15
	simSegmentBreak     = 0.2
	simSegmentWordCap   = 10
	simWordDuration     = 0.3
	simMaxSpeakers      = 3
	simSegmentsPerVoice = 5
)

var simVocabulary = []string{
	"audio", "transcription", "speech", "recognition", "model", "whisper", "language",
	"processing", "VoxScribe", "convert", "text", "file", "recording", "voice", "sound",
	"quality", "accuracy", "sentence", "paragraph", "word", "sample", "demo", "example",
}

// Simulator manufactures plausible transcription output when the real
// engine is unavailable. The output contract matches the engine path
// exactly; only the content is synthetic.
type Simulator struct {
	rng    *rand.Rand
	logger *zap.Logger
}

func NewSimulator(logger *zap.Logger) *Simulator {
	return NewSeededSimulator(time.Now().UnixNano(), logger)
}

func NewSeededSimulator(seed int64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Transcribe produces a synthetic result for clip, pacing itself
// proportionally to the input size (capped at 3s) and reporting
// progress in ten discrete steps.
func (s *Simulator) Transcribe(ctx context.Context, clip Clip, opts Options) (Result, error) {
	latency := time.Duration(clip.Size()) * time.Millisecond / 1000
	if latency > simMaxLatency {
		latency = simMaxLatency
	}
	stepTime := latency / simProgressSteps

	s.logger.Debug("simulating transcription",
		zap.String("file", clip.Name),
		zap.Duration("latency", latency),
	)

	for step := 1; step <= simProgressSteps; step++ {
		if err := sleepCtx(ctx, stepTime); err != nil {
			return Result{}, err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(float64(step) / simProgressSteps)
		}
	}

	text := s.buildText()

	result := Result{Text: text, Segments: []Segment{}}
	if opts.Timestamps {
		result.Segments = s.buildSegments(text)
	}
	if opts.SpeakerDiarization && len(result.Segments) > 0 {
		result.Speakers = s.buildSpeakers(len(result.Segments))
	}

	return result, nil
}

// buildText assembles 50-249 vocabulary words into sentences, ending a
// sentence with probability 0.15 per word or at 15 words.
func (s *Simulator) buildText() string {
	wordCount := s.rng.Intn(200) + 50

	var sentences []string
	var current []string
	for i := 0; i < wordCount; i++ {
		current = append(current, simVocabulary[s.rng.Intn(len(simVocabulary))])
		if s.rng.Float64() < simSentenceBreak || len(current) > simSentenceWordCap {
			sentences = append(sentences, strings.Join(current, " ")+".")
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " ")+".")
	}

	return strings.Join(sentences, " ")
}

// buildSegments splits text into contiguous spans starting at zero,
// with a fixed 0.3s-per-word duration heuristic.
func (s *Simulator) buildSegments(text string) []Segment {
	words := strings.Fields(text)

	var segments []Segment
	var current []string
	start := 0.0
	for i, word := range words {
		current = append(current, word)
		if s.rng.Float64() < simSegmentBreak || len(current) > simSegmentWordCap || i == len(words)-1 {
			duration := float64(len(current)) * simWordDuration
			segments = append(segments, Segment{
				ID:    len(segments),
				Start: start,
				End:   start + duration,
				Text:  strings.Join(current, " "),
			})
			start += duration
			current = nil
		}
	}

	return segments
}

// buildSpeakers partitions segment ids across 1-3 synthetic speakers.
// Assignment is uniformly random, so a speaker may end up with no
// segments; callers tolerate that.
func (s *Simulator) buildSpeakers(segmentCount int) []Speaker {
	speakerCount := segmentCount / simSegmentsPerVoice
	if speakerCount < 1 {
		speakerCount = 1
	}
	if speakerCount > simMaxSpeakers {
		speakerCount = simMaxSpeakers
	}

	speakers := make([]Speaker, speakerCount)
	for i := range speakers {
		speakers[i] = Speaker{ID: i, Segments: []int{}}
	}

	for id := 0; id < segmentCount; id++ {
		voice := s.rng.Intn(speakerCount)
		speakers[voice].Segments = append(speakers[voice].Segments, id)
	}

	return speakers
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
