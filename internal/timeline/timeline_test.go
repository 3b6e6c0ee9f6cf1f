package timeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgpai22/drillcast/internal/audio"
	"github.com/mgpai22/drillcast/internal/layout"
	"github.com/mgpai22/drillcast/internal/logging"
	"github.com/mgpai22/drillcast/internal/progress"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/sequence"
	"github.com/mgpai22/drillcast/internal/synth"
	"github.com/mgpai22/drillcast/internal/video"
)

const clipDuration = 1200 * time.Millisecond

type fakeSynth struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]bool
	panics bool
}

func newFakeSynth(fail ...string) *fakeSynth {
	s := &fakeSynth{calls: map[string]int{}, fail: map[string]bool{}}
	for _, f := range fail {
		s.fail[f] = true
	}
	return s
}

func (s *fakeSynth) Synthesize(_ context.Context, text, language string) (*synth.Audio, error) {
	s.mu.Lock()
	s.calls[text+"|"+language]++
	s.mu.Unlock()
	if s.panics {
		panic("voice model crashed")
	}
	if s.fail[text] {
		return nil, errors.New("synthesis unavailable")
	}
	return &synth.Audio{Data: []byte(text), Format: synth.FormatMP3}, nil
}

func (s *fakeSynth) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type fakeAudio struct {
	mu       sync.Mutex
	silences []time.Duration
	concat   []string
	concats  map[string][]string
	failCat  bool

	// the first failSilence calls for this duration fail
	failDuration time.Duration
	failSilence  int
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("x"), 0644)
}

func (a *fakeAudio) Silence(_ context.Context, d time.Duration, out string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d == a.failDuration && a.failSilence > 0 {
		a.failSilence--
		return errors.New("disk full")
	}
	a.silences = append(a.silences, d)
	return touch(out)
}

func (a *fakeAudio) Normalize(_ context.Context, in string, _ *audio.RawFormat, out string) error {
	if _, err := os.Stat(in); err != nil {
		return err
	}
	return touch(out)
}

func (a *fakeAudio) Concat(_ context.Context, inputs []string, out string) error {
	if a.failCat {
		return errors.New("encoder crashed")
	}
	a.concat = inputs
	if a.concats == nil {
		a.concats = map[string][]string{}
	}
	a.concats[filepath.Base(out)] = inputs
	return touch(out)
}

func (a *fakeAudio) Duration(context.Context, string) (time.Duration, error) {
	return clipDuration, nil
}

type stillCall struct {
	frame  string
	frames int
}

type fakeVideo struct {
	stills     []stillCall
	concat     []string
	soundtrack string
	muxed      string
}

func (v *fakeVideo) FrameRate() int { return 10 }

func (v *fakeVideo) StillClip(_ context.Context, frame string, frames int, out string) error {
	v.stills = append(v.stills, stillCall{frame, frames})
	return touch(out)
}

func (v *fakeVideo) Concat(_ context.Context, clips []string, out string) error {
	v.concat = clips
	return touch(out)
}

func (v *fakeVideo) Mux(_ context.Context, pic, snd, out string) error {
	v.soundtrack = snd
	v.muxed = out
	return touch(out)
}

type fakeFrames struct {
	rendered map[string]int
}

func (f *fakeFrames) RenderFrame(pair sentence.Pair, path string) (layout.Frame, error) {
	f.rendered[pair.Source]++
	return layout.Frame{SourceLines: []string{pair.Source}, TargetLines: []string{pair.Target}}, touch(path)
}

type harness struct {
	m      *Materializer
	synth  *fakeSynth
	audio  *fakeAudio
	video  *fakeVideo
	frames *fakeFrames
	logs   *observer.ObservedLogs
	pcts   []int
}

func newHarness(t *testing.T, concurrency int, fail ...string) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		synth:  newFakeSynth(fail...),
		audio:  &fakeAudio{},
		video:  &fakeVideo{},
		frames: &fakeFrames{rendered: map[string]int{}},
		logs:   logs,
	}
	m, err := New(Config{
		ScratchDir:     t.TempDir(),
		Synthesizer:    h.synth,
		Audio:          h.audio,
		Video:          h.video,
		Frames:         h.frames,
		SourceLanguage: "ja",
		TargetLanguage: "en",
		AudioPauses:    sequence.AudioPauses(),
		VideoPauses:    sequence.VideoPauses(),
		Concurrency:    concurrency,
		Progress:       progress.Func(func(p int, _ string) { h.pcts = append(h.pcts, p) }),
		Logger:         logging.New(zap.New(core)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.m = m
	return h
}

var examplePairs = []sentence.Pair{
	{Source: "これはペンです", Target: "This is a pen."},
	{Source: "私は学生です", Target: "I am a student."},
}

var phase = progress.Phase{Label: "Audio", Offset: 10, Share: 40}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without scratch dir")
	}
	if _, err := New(Config{ScratchDir: t.TempDir()}); err == nil {
		t.Error("expected error without synthesizer")
	}
}

func TestAudioTrackSynthesizesEachKeyOnce(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		h := newHarness(t, concurrency)
		plan := sentence.Plan{SourceReps: 1, TargetReps: 3}

		tl, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(t.TempDir(), "out.mp3"), phase)
		if err != nil {
			t.Fatalf("AudioTrack: %v", err)
		}

		if len(tl.Entries) != 17 {
			t.Fatalf("entries = %d, want 17", len(tl.Entries))
		}
		if got := h.synth.total(); got != 4 {
			t.Errorf("concurrency %d: synthesize calls = %d, want 4", concurrency, got)
		}
		for key, n := range h.synth.calls {
			if n != 1 {
				t.Errorf("%s synthesized %d times", key, n)
			}
		}
		if len(h.audio.concat) != 17 {
			t.Errorf("concat inputs = %d, want 17", len(h.audio.concat))
		}
	}
}

func TestAudioTrackDurations(t *testing.T) {
	h := newHarness(t, 1)
	plan := sentence.Plan{SourceReps: 1, TargetReps: 3}

	tl, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(t.TempDir(), "out.mp3"), phase)
	if err != nil {
		t.Fatalf("AudioTrack: %v", err)
	}

	// 2 pairs: 8 clips, 8 rep gaps, 2 language gaps, 1 entry gap
	want := 8*clipDuration + 8*800*time.Millisecond + 2*600*time.Millisecond + 2000*time.Millisecond
	if tl.Total != want {
		t.Errorf("Total = %v, want %v", tl.Total, want)
	}

	var start time.Duration
	for i, e := range tl.Entries {
		if e.Start != start {
			t.Errorf("entry %d start = %v, want %v", i, e.Start, start)
		}
		start += e.Duration
	}

	// target clip replays the same file each repetition
	if tl.Entries[3].AudioPath != tl.Entries[5].AudioPath {
		t.Error("repetitions should reuse the same clip")
	}
}

func TestSynthesisFailureFallsBackToSilence(t *testing.T) {
	h := newHarness(t, 1, "これはペンです")
	plan := sentence.Plan{SourceReps: 1, TargetReps: 3}

	tl, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(t.TempDir(), "out.mp3"), phase)
	if err != nil {
		t.Fatalf("AudioTrack should succeed, got %v", err)
	}

	first := tl.Entries[0]
	if !first.Fallback || first.Duration != DefaultFallbackSilence {
		t.Errorf("Speech(0, source, 1) = %+v, want 500ms fallback", first)
	}
	if tl.Fallbacks() != 1 {
		t.Errorf("fallbacks = %d, want 1", tl.Fallbacks())
	}
	for _, e := range tl.Entries[1:] {
		if e.Segment.IsSpeech() && e.Duration != clipDuration {
			t.Errorf("%s duration = %v, want %v", e.Segment, e.Duration, clipDuration)
		}
	}

	warnings := h.logs.FilterMessage("Synthesis failed, using silence").All()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	if warnings[0].ContextMap()["pair"] != int64(0) {
		t.Errorf("pair field = %v", warnings[0].ContextMap()["pair"])
	}
}

func TestVideoTrackFollowsFrameGrid(t *testing.T) {
	h := newHarness(t, 1)
	plan := sentence.Plan{SourceReps: 2, TargetReps: 2}

	tl, err := h.m.VideoTrack(context.Background(), examplePairs, plan, filepath.Join(t.TempDir(), "out.mp4"), phase)
	if err != nil {
		t.Fatalf("VideoTrack: %v", err)
	}

	for name, n := range h.frames.rendered {
		if n != 1 {
			t.Errorf("frame for %q rendered %d times, want 1", name, n)
		}
	}

	seen := map[stillCall]bool{}
	for _, s := range h.video.stills {
		if seen[s] {
			t.Errorf("still clip %+v encoded twice", s)
		}
		seen[s] = true
	}

	// every entry is one clip; frame counts add up to the track length
	// on the 10 fps grid, so the picture never runs ahead of the audio
	if len(h.video.concat) != len(tl.Entries) {
		t.Fatalf("concat clips = %d, want %d", len(h.video.concat), len(tl.Entries))
	}
	frames := 0
	for _, e := range tl.Entries {
		if e.FramePath == "" {
			t.Fatalf("%s has no frame", e.Segment)
		}
		n := video.Frames(e.Start, e.Start+e.Duration, 10)
		if !seen[stillCall{e.FramePath, n}] {
			t.Errorf("%s: no still of %d frames", e.Segment, n)
		}
		frames += n
	}
	if want := int(math.Round(tl.Total.Seconds() * 10)); frames != want {
		t.Errorf("total frames = %d, want %d for %v", frames, want, tl.Total)
	}

	// the soundtrack is the woven wav list, muxed once
	if filepath.Base(h.video.soundtrack) != "video_audio.wav" {
		t.Errorf("soundtrack = %q", h.video.soundtrack)
	}
	if got := h.audio.concats["video_audio.wav"]; len(got) != len(tl.Entries) {
		t.Errorf("soundtrack inputs = %d, want %d", len(got), len(tl.Entries))
	}

	// video uses its own pause lengths
	if tl.Entries[1].Duration != 900*time.Millisecond {
		t.Errorf("video inter-repetition = %v, want 900ms", tl.Entries[1].Duration)
	}
}

func TestPrefetchPanicSurfacesOnCaller(t *testing.T) {
	h := newHarness(t, 4)
	h.synth.panics = true

	defer func() {
		if r := recover(); r != "voice model crashed" {
			t.Errorf("recovered %v, want the synthesizer panic", r)
		}
	}()

	_, _ = h.m.AudioTrack(context.Background(), examplePairs, sentence.Plan{SourceReps: 1, TargetReps: 1}, filepath.Join(t.TempDir(), "out.mp3"), phase)
	t.Error("AudioTrack should have panicked")
}

func TestFallbackSilenceRetriedPerTrack(t *testing.T) {
	h := newHarness(t, 1, "これはペンです")
	h.audio.failDuration = DefaultFallbackSilence
	h.audio.failSilence = 1
	plan := sentence.Plan{SourceReps: 1, TargetReps: 1}
	dir := t.TempDir()

	if _, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(dir, "a.mp3"), phase); err == nil {
		t.Fatal("audio track should fail when its fallback silence cannot be built")
	}

	tl, err := h.m.VideoTrack(context.Background(), examplePairs, plan, filepath.Join(dir, "v.mp4"), phase)
	if err != nil {
		t.Fatalf("video track should not inherit the audio failure: %v", err)
	}
	if !tl.Entries[0].Fallback || tl.Entries[0].Duration != DefaultFallbackSilence {
		t.Errorf("first entry = %+v, want fallback silence", tl.Entries[0])
	}
	if got := h.synth.total(); got != 4 {
		t.Errorf("synthesize calls = %d, want 4", got)
	}
}

func TestZeroLengthPauseCarriesNoAudio(t *testing.T) {
	h := newHarness(t, 1)
	h.m.cfg.AudioPauses.InterLanguage = 0

	tl, err := h.m.AudioTrack(context.Background(), examplePairs[:1], sentence.Plan{SourceReps: 1, TargetReps: 1}, filepath.Join(t.TempDir(), "out.mp3"), phase)
	if err != nil {
		t.Fatalf("AudioTrack: %v", err)
	}
	if len(tl.Entries) != 5 || len(h.audio.concat) != 4 {
		t.Errorf("entries = %d, concat inputs = %d; want 5 and 4", len(tl.Entries), len(h.audio.concat))
	}
	for _, d := range h.audio.silences {
		if d <= 0 {
			t.Errorf("generated a silence of %v", d)
		}
	}
}

func TestTracksShareSynthesisCache(t *testing.T) {
	h := newHarness(t, 1)
	plan := sentence.Plan{SourceReps: 1, TargetReps: 1}
	dir := t.TempDir()

	if _, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(dir, "a.mp3"), phase); err != nil {
		t.Fatal(err)
	}
	if _, err := h.m.VideoTrack(context.Background(), examplePairs, plan, filepath.Join(dir, "v.mp4"), phase); err != nil {
		t.Fatal(err)
	}
	if got := h.synth.total(); got != 4 {
		t.Errorf("synthesize calls = %d, want 4", got)
	}
}

func TestProgressIsMonotonicWithinPhase(t *testing.T) {
	h := newHarness(t, 1)
	plan := sentence.Plan{SourceReps: 1, TargetReps: 1}

	if _, err := h.m.AudioTrack(context.Background(), examplePairs, plan, filepath.Join(t.TempDir(), "out.mp3"), phase); err != nil {
		t.Fatal(err)
	}

	want := []int{30, 50, 50}
	if len(h.pcts) != len(want) {
		t.Fatalf("progress = %v, want %v", h.pcts, want)
	}
	for i := range want {
		if h.pcts[i] != want[i] {
			t.Errorf("progress = %v, want %v", h.pcts, want)
			break
		}
	}
}

func TestEncodeFailureIsReturned(t *testing.T) {
	h := newHarness(t, 1)
	h.audio.failCat = true

	_, err := h.m.AudioTrack(context.Background(), examplePairs, sentence.Plan{SourceReps: 1, TargetReps: 1}, filepath.Join(t.TempDir(), "out.mp3"), phase)
	if err == nil || !strings.Contains(err.Error(), "encoder crashed") {
		t.Errorf("err = %v, want encoder failure", err)
	}
}

func TestEmptyPairs(t *testing.T) {
	h := newHarness(t, 1)
	if _, err := h.m.AudioTrack(context.Background(), nil, sentence.Plan{SourceReps: 1, TargetReps: 1}, filepath.Join(t.TempDir(), "out.mp3"), phase); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestCanceledContext(t *testing.T) {
	h := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.m.AudioTrack(ctx, examplePairs, sentence.Plan{SourceReps: 1, TargetReps: 1}, filepath.Join(t.TempDir(), "out.mp3"), phase)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
