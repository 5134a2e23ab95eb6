package transcribe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxscribe/voxscribe/internal/loader"
	"github.com/voxscribe/voxscribe/internal/transcode"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/whisper"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req whisper.Request) (whisper.Output, error)
}

func (f *fakeEngine) Transcribe(ctx context.Context, req whisper.Request) (whisper.Output, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func engineLoader(t *testing.T, engine whisper.Engine, preload bool) *loader.Loader[*whisper.Handle] {
	t.Helper()
	l := loader.New("engine", func(ctx context.Context, report loader.ProgressFunc) (*whisper.Handle, error) {
		return &whisper.Handle{Engine: engine, ModelPath: "/models/ggml-tiny.bin"}, nil
	}, nil)
	if preload {
		_, err := l.Get(context.Background(), nil)
		require.NoError(t, err)
	}
	return l
}

func failingEngineLoader() *loader.Loader[*whisper.Handle] {
	return loader.New("engine", func(ctx context.Context, report loader.ProgressFunc) (*whisper.Handle, error) {
		return nil, &loader.LoadError{Reason: "network error loading model", Err: errors.New("connection refused")}
	}, nil)
}

func testClip() transcript.Clip {
	return transcript.Clip{Name: "meeting.mp3", MIME: "audio/mp3", Data: []byte("audio bytes")}
}

func newTestService(engine *loader.Loader[*whisper.Handle]) *Service {
	return NewService(engine, nil, transcript.NewSeededSimulator(1, nil), nil)
}

func TestTranscribeOneUsesEngineWhenReady(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{Text: "real transcript"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, true))

	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{})
	require.True(t, outcome.Success)
	require.True(t, outcome.UsedRealModel)
	require.Equal(t, transcript.DegradeNone, outcome.Degraded)
	require.Equal(t, "real transcript", outcome.Data.Text)
	require.Equal(t, "meeting.mp3", outcome.Filename)
	require.NotEmpty(t, outcome.JobID)
}

func TestTranscribeOneForcedAttemptBeforeReady(t *testing.T) {
	t.Parallel()

	// Engine not preloaded: the call must still reach it (load on
	// demand) instead of going straight to the simulator.
	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{Text: "forced but real"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, false))

	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{})
	require.True(t, outcome.Success)
	require.True(t, outcome.UsedRealModel)
	require.Equal(t, 1, fe.callCount())
}

func TestTranscribeOneFallsBackToSimulatorOnLoadFailure(t *testing.T) {
	t.Parallel()

	svc := newTestService(failingEngineLoader())

	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{})
	require.True(t, outcome.Success)
	require.False(t, outcome.UsedRealModel)
	require.Equal(t, transcript.DegradeForcedAttempt, outcome.Degraded)
	require.GreaterOrEqual(t, len(strings.Fields(outcome.Data.Text)), 50)
}

func TestTranscribeOneFallsBackWhenReadyEngineErrors(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{}, errors.New("decode blew up")
	}}
	svc := newTestService(engineLoader(t, fe, true))

	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{})
	require.True(t, outcome.Success)
	require.False(t, outcome.UsedRealModel)
	require.Equal(t, transcript.DegradeEngineFailed, outcome.Degraded)
}

func TestTranscribeOneSkipForcedAttempt(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{Text: "should not run"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, false))

	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{SkipForcedAttempt: true})
	require.True(t, outcome.Success)
	require.False(t, outcome.UsedRealModel)
	require.Equal(t, transcript.DegradeEngineNotReady, outcome.Degraded)
	require.Zero(t, fe.callCount())
}

func TestTranscribeOneNeverRaises(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		panic("engine exploded")
	}}
	svc := newTestService(engineLoader(t, fe, true))

	var outcome transcript.Outcome
	require.NotPanics(t, func() {
		outcome = svc.TranscribeOne(context.Background(), transcript.Clip{Name: "corrupt.bin", Data: []byte{0x00, 0xff}}, transcript.Options{})
	})
	require.False(t, outcome.Success)
	require.Error(t, outcome.Err)
	require.NotEmpty(t, outcome.ErrorMessage())
}

func TestTranscribeOneCorruptBufferStillResolves(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{}, errors.New("unreadable audio")
	}}
	svc := newTestService(engineLoader(t, fe, true))

	outcome := svc.TranscribeOne(context.Background(), transcript.Clip{Name: "corrupt.mp3", MIME: "audio/mp3", Data: []byte{0xde, 0xad}}, transcript.Options{})
	require.True(t, outcome.Success)
	require.False(t, outcome.UsedRealModel)
}

func TestTranscribeOnePassThroughWithUnloadedTranscoder(t *testing.T) {
	t.Parallel()

	// A transcoder loader that was never started must not be triggered
	// by transcription; the clip passes through untouched.
	transcoderLoads := 0
	tl := loader.New("transcoder", func(ctx context.Context, report loader.ProgressFunc) (*transcode.Transcoder, error) {
		transcoderLoads++
		return &transcode.Transcoder{Executable: "/bin/false"}, nil
	}, nil)

	var seenPath string
	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		seenPath = req.AudioPath
		return whisper.Output{Text: "ok"}, nil
	}}
	svc := NewService(engineLoader(t, fe, true), tl, transcript.NewSeededSimulator(1, nil), nil)

	clip := testClip()
	outcome := svc.TranscribeOne(context.Background(), clip, transcript.Options{})
	require.True(t, outcome.Success)
	require.Zero(t, transcoderLoads)
	require.Contains(t, seenPath, ".mp3")
}

func TestTranscribeOneProgressIsMonotonicAcrossLoadAndInference(t *testing.T) {
	t.Parallel()

	// The load phase reports fractions up to 1.0; scaled into the first
	// half they must never exceed the inference milestones that follow.
	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{Text: "t"}, nil
	}}
	l := loader.New("engine", func(ctx context.Context, report loader.ProgressFunc) (*whisper.Handle, error) {
		report(0.6)
		report(1)
		return &whisper.Handle{Engine: fe, ModelPath: "/models/ggml-tiny.bin"}, nil
	}, nil)
	svc := newTestService(l)

	var fractions []float64
	outcome := svc.TranscribeOne(context.Background(), testClip(), transcript.Options{
		OnProgress: func(fraction float64) { fractions = append(fractions, fraction) },
	})
	require.True(t, outcome.Success)
	require.True(t, outcome.UsedRealModel)
	require.NotEmpty(t, fractions)

	for i := 1; i < len(fractions); i++ {
		require.GreaterOrEqual(t, fractions[i], fractions[i-1],
			"progress went backward at index %d: %v", i, fractions)
	}
	require.LessOrEqual(t, fractions[0], 0.5, "load progress must stay within the first half")
	require.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestTranscribeManySequentialSuccess(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		return whisper.Output{Text: "file transcript"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, true))

	clips := []transcript.Clip{
		{Name: "a.mp3", MIME: "audio/mp3", Data: []byte("a")},
		{Name: "b.mp3", MIME: "audio/mp3", Data: []byte("b")},
	}

	batch := svc.TranscribeMany(context.Background(), clips, transcript.Options{})
	require.True(t, batch.Success)
	require.Len(t, batch.Outcomes, 2)
	require.Equal(t, "a.mp3", batch.Outcomes[0].Filename)
	require.Equal(t, "b.mp3", batch.Outcomes[1].Filename)
}

func TestTranscribeManyShortCircuitsOnFailure(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		if call == 2 {
			panic("file two is cursed")
		}
		return whisper.Output{Text: "fine"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, true))

	clips := []transcript.Clip{
		{Name: "one.mp3", MIME: "audio/mp3", Data: []byte("1")},
		{Name: "two.mp3", MIME: "audio/mp3", Data: []byte("2")},
		{Name: "three.mp3", MIME: "audio/mp3", Data: []byte("3")},
	}

	batch := svc.TranscribeMany(context.Background(), clips, transcript.Options{})
	require.False(t, batch.Success)
	require.Equal(t, "two.mp3", batch.FailedFile)
	require.Contains(t, batch.Err.Error(), "two.mp3")
	require.Len(t, batch.Outcomes, 1)
	require.Equal(t, 2, fe.callCount(), "file three must never be attempted")
}

func TestTranscribeManyProgressIsMonotonicAndEndsAtOne(t *testing.T) {
	t.Parallel()

	var thirdFileStart int
	var fractions []float64

	fe := &fakeEngine{fn: func(call int, req whisper.Request) (whisper.Output, error) {
		if call == 3 {
			thirdFileStart = len(fractions)
		}
		return whisper.Output{Text: "t"}, nil
	}}
	svc := newTestService(engineLoader(t, fe, true))

	clips := []transcript.Clip{
		{Name: "a.mp3", MIME: "audio/mp3", Data: []byte("a")},
		{Name: "b.mp3", MIME: "audio/mp3", Data: []byte("b")},
		{Name: "c.mp3", MIME: "audio/mp3", Data: []byte("c")},
	}

	batch := svc.TranscribeMany(context.Background(), clips, transcript.Options{
		OnProgress: func(fraction float64) { fractions = append(fractions, fraction) },
	})
	require.True(t, batch.Success)
	require.NotEmpty(t, fractions)

	for i := 1; i < len(fractions); i++ {
		require.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	require.Equal(t, 1.0, fractions[len(fractions)-1])
	for _, fraction := range fractions[:thirdFileStart] {
		require.Less(t, fraction, 1.0, "overall progress must not reach 1.0 before the last file")
	}
}

func TestTranscribeManyEmptyInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(failingEngineLoader())
	batch := svc.TranscribeMany(context.Background(), nil, transcript.Options{})
	require.True(t, batch.Success)
	require.Empty(t, batch.Outcomes)
}
