// Package timeline binds sequenced segments to concrete media and folds
// them into the final audio and video tracks.
//
// Each (pair, language) key is synthesized at most once per Materializer
// and the clip is replayed for every repetition. A key whose synthesis
// fails resolves to a short silence instead of failing the track.
package timeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mgpai22/drillcast/internal/audio"
	"github.com/mgpai22/drillcast/internal/layout"
	"github.com/mgpai22/drillcast/internal/logging"
	"github.com/mgpai22/drillcast/internal/progress"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/sequence"
	"github.com/mgpai22/drillcast/internal/synth"
	"github.com/mgpai22/drillcast/internal/video"
)

// DefaultFallbackSilence replaces a clip whose synthesis failed.
const DefaultFallbackSilence = 500 * time.Millisecond

// AudioEncoder is the subset of audio.Encoder the materializer drives.
type AudioEncoder interface {
	Silence(ctx context.Context, d time.Duration, outputPath string) error
	Normalize(ctx context.Context, inputPath string, raw *audio.RawFormat, outputPath string) error
	Concat(ctx context.Context, inputs []string, outputPath string) error
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// VideoEncoder is the subset of video.Encoder the materializer drives.
type VideoEncoder interface {
	FrameRate() int
	StillClip(ctx context.Context, framePath string, frames int, outputPath string) error
	Concat(ctx context.Context, clips []string, outputPath string) error
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FrameRenderer rasterizes a pair's layout frame to a PNG.
type FrameRenderer interface {
	RenderFrame(pair sentence.Pair, path string) (layout.Frame, error)
}

type Config struct {
	// ScratchDir holds every intermediate file; owned by one run.
	ScratchDir string

	Synthesizer synth.Synthesizer
	Audio       AudioEncoder
	Video       VideoEncoder
	Frames      FrameRenderer

	// language codes handed to the synthesizer
	SourceLanguage string
	TargetLanguage string

	AudioPauses     sequence.Pauses
	VideoPauses     sequence.Pauses
	FallbackSilence time.Duration

	// Concurrency > 1 prefetches every clip with a worker pool.
	Concurrency int

	Progress progress.Sink
	Logger   *logging.Logger
}

type clipKey struct {
	pair int
	lang sentence.Language
}

// clip caches the outcome of one synthesis. A failed synthesis is cached
// as failed; its fallback silence is looked up on every use so a silence
// error in one track does not stick to the other.
type clip struct {
	once     sync.Once
	path     string
	duration time.Duration
	failed   bool
	panicked any
}

type stillKey struct {
	frame  string
	frames int
}

type Materializer struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	clips    map[clipKey]*clip
	silences map[time.Duration]string
	silMu    sync.Mutex
	frames   map[int]string
	stills   map[stillKey]string
}

func New(cfg Config) (*Materializer, error) {
	if cfg.ScratchDir == "" {
		return nil, fmt.Errorf("scratch directory is required")
	}
	if cfg.Synthesizer == nil || cfg.Audio == nil {
		return nil, fmt.Errorf("synthesizer and audio encoder are required")
	}
	if cfg.FallbackSilence <= 0 {
		cfg.FallbackSilence = DefaultFallbackSilence
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.Nop
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Materializer{
		cfg:      cfg,
		logger:   logger.Named("timeline"),
		clips:    make(map[clipKey]*clip),
		silences: make(map[time.Duration]string),
		frames:   make(map[int]string),
		stills:   make(map[stillKey]string),
	}, nil
}

// one materialized segment
type Entry struct {
	Segment  sequence.Segment
	Start    time.Duration
	Duration time.Duration

	AudioPath string
	FramePath string // video only

	// Fallback marks speech replaced by silence after a synthesis failure.
	Fallback bool
}

// Timeline is the woven, ordered result of one track.
type Timeline struct {
	Entries []Entry
	Total   time.Duration
}

// AudioPaths lists the audio of every entry in order, skipping zero-length
// gaps that carry no file.
func (t *Timeline) AudioPaths() []string {
	paths := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.AudioPath != "" {
			paths = append(paths, e.AudioPath)
		}
	}
	return paths
}

// Fallbacks counts speech entries that resolved to silence.
func (t *Timeline) Fallbacks() int {
	n := 0
	for _, e := range t.Entries {
		if e.Fallback {
			n++
		}
	}
	return n
}

func (m *Materializer) language(lang sentence.Language) string {
	if lang == sentence.Source {
		return m.cfg.SourceLanguage
	}
	return m.cfg.TargetLanguage
}

func (m *Materializer) path(parts ...string) string {
	return filepath.Join(append([]string{m.cfg.ScratchDir}, parts...)...)
}

// silence returns a cached silent wav of length d.
func (m *Materializer) silence(ctx context.Context, d time.Duration) (string, error) {
	m.silMu.Lock()
	defer m.silMu.Unlock()

	if p, ok := m.silences[d]; ok {
		return p, nil
	}
	p := m.path("silence", fmt.Sprintf("%dms.wav", d.Milliseconds()))
	if err := m.cfg.Audio.Silence(ctx, d, p); err != nil {
		return "", err
	}
	m.silences[d] = p
	return p, nil
}

func (m *Materializer) clipFor(key clipKey) *clip {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clips[key]
	if !ok {
		c = &clip{}
		m.clips[key] = c
	}
	return c
}

// fill synthesizes key once. A panic in a collaborator is recorded on
// the clip rather than unwinding a prefetch worker.
func (m *Materializer) fill(ctx context.Context, pairs []sentence.Pair, key clipKey) *clip {
	c := m.clipFor(key)
	c.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.panicked = r
			}
		}()

		path, d, err := m.synthesize(ctx, pairs[key.pair].Text(key.lang), key)
		if err != nil {
			m.logger.Warnw("Synthesis failed, using silence",
				"pair", key.pair,
				"language", key.lang,
				"error", err,
			)
			c.failed = true
			return
		}
		c.path, c.duration = path, d
	})
	return c
}

// resolve returns the audio bound to key. It runs on the weaving
// goroutine, so a panic recorded by a prefetch worker resurfaces here.
func (m *Materializer) resolve(ctx context.Context, pairs []sentence.Pair, key clipKey) (string, time.Duration, bool, error) {
	c := m.fill(ctx, pairs, key)
	if c.panicked != nil {
		panic(c.panicked)
	}
	if !c.failed {
		return c.path, c.duration, false, nil
	}

	p, err := m.silence(ctx, m.cfg.FallbackSilence)
	if err != nil {
		return "", 0, true, fmt.Errorf("fallback silence for pair %d (%s): %w", key.pair, key.lang, err)
	}
	return p, m.cfg.FallbackSilence, true, nil
}

func (m *Materializer) synthesize(ctx context.Context, text string, key clipKey) (string, time.Duration, error) {
	res, err := m.cfg.Synthesizer.Synthesize(ctx, text, m.language(key.lang))
	if err != nil {
		return "", 0, err
	}
	if res == nil || len(res.Data) == 0 {
		return "", 0, fmt.Errorf("synthesizer returned no audio")
	}

	base := fmt.Sprintf("p%04d_%s", key.pair, key.lang)
	rawPath := m.path("clips", base+res.Extension())
	if err := os.MkdirAll(filepath.Dir(rawPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create clip directory: %w", err)
	}
	if err := os.WriteFile(rawPath, res.Data, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write clip: %w", err)
	}

	var raw *audio.RawFormat
	if res.Format == synth.FormatPCM {
		raw = &audio.RawFormat{
			Format:     string(res.Format),
			SampleRate: res.SampleRate,
			Channels:   res.Channels,
		}
	}

	wavPath := m.path("clips", base+".wav")
	if err := m.cfg.Audio.Normalize(ctx, rawPath, raw, wavPath); err != nil {
		return "", 0, err
	}

	d, err := m.cfg.Audio.Duration(ctx, wavPath)
	if err != nil {
		return "", 0, err
	}
	if d <= 0 {
		return "", 0, fmt.Errorf("synthesized clip has no duration")
	}
	return wavPath, d, nil
}

// Prefetch resolves every (pair, language) key using a worker pool when
// concurrency allows. Resolution is idempotent.
func (m *Materializer) Prefetch(ctx context.Context, pairs []sentence.Pair) {
	if m.cfg.Concurrency <= 1 || len(pairs) == 0 {
		return
	}

	keys := make(chan clipKey, 2*len(pairs))
	for i := range pairs {
		keys <- clipKey{pair: i, lang: sentence.Source}
		keys <- clipKey{pair: i, lang: sentence.Target}
	}
	close(keys)

	var wg sync.WaitGroup
	for i := 0; i < m.cfg.Concurrency; i++ {
		wg.Go(func() {
			for key := range keys {
				if ctx.Err() != nil {
					return
				}
				m.fill(ctx, pairs, key)
			}
		})
	}
	wg.Wait()
}

// weave walks segments in order and binds each to media, reporting
// progress after every pair.
func (m *Materializer) weave(
	ctx context.Context,
	pairs []sentence.Pair,
	segments []sequence.Segment,
	withFrames bool,
	phase progress.Phase,
) (*Timeline, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to materialize")
	}

	m.Prefetch(ctx, pairs)

	tl := &Timeline{Entries: make([]Entry, 0, len(segments))}
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := Entry{Segment: seg, Start: tl.Total}
		switch {
		case seg.IsSpeech():
			p, d, fallback, err := m.resolve(ctx, pairs, clipKey{pair: seg.PairIndex, lang: seg.Language})
			if err != nil {
				return nil, err
			}
			entry.AudioPath, entry.Duration, entry.Fallback = p, d, fallback
		case seg.Duration > 0:
			p, err := m.silence(ctx, seg.Duration)
			if err != nil {
				return nil, fmt.Errorf("silence %v: %w", seg.Duration, err)
			}
			entry.AudioPath, entry.Duration = p, seg.Duration
		}

		if withFrames {
			fp, err := m.frame(pairs, seg.PairIndex)
			if err != nil {
				return nil, err
			}
			entry.FramePath = fp
		}

		tl.Entries = append(tl.Entries, entry)
		tl.Total += entry.Duration

		last := i == len(segments)-1
		if last || segments[i+1].PairIndex != seg.PairIndex {
			done := seg.PairIndex + 1
			m.cfg.Progress.Report(
				phase.At(done, len(pairs)),
				fmt.Sprintf("%s: pair %d/%d", phase.Label, done, len(pairs)),
			)
		}
	}
	return tl, nil
}

// frame renders the pair's still once and returns its path.
func (m *Materializer) frame(pairs []sentence.Pair, index int) (string, error) {
	if p, ok := m.frames[index]; ok {
		return p, nil
	}
	if m.cfg.Frames == nil {
		return "", fmt.Errorf("no frame renderer configured")
	}

	p := m.path("frames", fmt.Sprintf("p%04d.png", index))
	if _, err := m.cfg.Frames.RenderFrame(pairs[index], p); err != nil {
		return "", fmt.Errorf("render frame for pair %d: %w", index, err)
	}
	m.frames[index] = p
	return p, nil
}

// AudioTrack materializes the audio-only sequence and encodes it to out.
func (m *Materializer) AudioTrack(
	ctx context.Context,
	pairs []sentence.Pair,
	plan sentence.Plan,
	out string,
	phase progress.Phase,
) (*Timeline, error) {
	segments := sequence.Sequence(pairs, plan, m.cfg.AudioPauses)
	tl, err := m.weave(ctx, pairs, segments, false, phase)
	if err != nil {
		return nil, err
	}

	m.cfg.Progress.Report(phase.At(len(pairs), len(pairs)), "Encoding audio track")

	if err := m.cfg.Audio.Concat(ctx, tl.AudioPaths(), out); err != nil {
		return nil, err
	}

	m.logger.Infow("Audio track encoded",
		"segments", len(tl.Entries),
		"duration", tl.Total,
		"fallbacks", tl.Fallbacks(),
	)
	return tl, nil
}

// VideoTrack materializes the video sequence. Each entry's still is held
// for the frames between its start and end on the frame grid, the woven
// audio is kept sample-exact, and the two are muxed once.
func (m *Materializer) VideoTrack(
	ctx context.Context,
	pairs []sentence.Pair,
	plan sentence.Plan,
	out string,
	phase progress.Phase,
) (*Timeline, error) {
	if m.cfg.Video == nil {
		return nil, fmt.Errorf("no video encoder configured")
	}

	segments := sequence.Sequence(pairs, plan, m.cfg.VideoPauses)
	tl, err := m.weave(ctx, pairs, segments, true, phase)
	if err != nil {
		return nil, err
	}

	m.cfg.Progress.Report(phase.At(len(pairs), len(pairs)), "Encoding video track")

	fps := m.cfg.Video.FrameRate()
	var clips []string
	for _, e := range tl.Entries {
		n := video.Frames(e.Start, e.Start+e.Duration, fps)
		if n == 0 {
			continue
		}
		p, err := m.still(ctx, e, n)
		if err != nil {
			return nil, err
		}
		clips = append(clips, p)
	}

	soundtrack := m.path("video_audio.wav")
	if err := m.cfg.Audio.Concat(ctx, tl.AudioPaths(), soundtrack); err != nil {
		return nil, err
	}
	picture := m.path("video_picture.mp4")
	if err := m.cfg.Video.Concat(ctx, clips, picture); err != nil {
		return nil, err
	}
	if err := m.cfg.Video.Mux(ctx, picture, soundtrack, out); err != nil {
		return nil, err
	}

	m.logger.Infow("Video track encoded",
		"segments", len(tl.Entries),
		"clips", len(m.stills),
		"duration", tl.Total,
		"fallbacks", tl.Fallbacks(),
	)
	return tl, nil
}

// still encodes one clip per distinct (frame, frame count).
func (m *Materializer) still(ctx context.Context, e Entry, frames int) (string, error) {
	key := stillKey{frame: e.FramePath, frames: frames}
	if p, ok := m.stills[key]; ok {
		return p, nil
	}

	p := m.path("stills", fmt.Sprintf("s%04d.mp4", len(m.stills)))
	if err := m.cfg.Video.StillClip(ctx, e.FramePath, frames, p); err != nil {
		return "", fmt.Errorf("still clip for %s: %w", e.Segment, err)
	}
	m.stills[key] = p
	return p, nil
}
