// Package compile runs one end-to-end compilation: it validates the
// request, owns the scratch area, builds each requested track and
// publishes whatever succeeded.
package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/mgpai22/drillcast/internal/logging"
	"github.com/mgpai22/drillcast/internal/progress"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/subtitle"
	"github.com/mgpai22/drillcast/internal/timeline"
)

const (
	AudioFileName = "output_audio.mp3"
	VideoFileName = "output_video.mp4"

	trackShare = 40
)

var (
	ErrNoPairs  = errors.New("no valid sentence pairs in input")
	ErrNoTracks = errors.New("neither audio nor video output requested")
)

// ValidationError reports input rejected before any work started.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Track names one output artifact.
type Track string

const (
	TrackAudio Track = "audio"
	TrackVideo Track = "video"
)

type Request struct {
	// Input holds "<source>,<target>" lines.
	Input string
	Audio bool
	Video bool
	Plan  sentence.Plan

	// OutputDir overrides the compiler's default output directory.
	OutputDir string
}

// Artifacts lists what a run produced. A track that was requested but
// failed has an empty path and an entry in Failures.
type Artifacts struct {
	Audio          string
	Video          string
	AudioSubtitles string
	VideoSubtitles string

	Pairs    int
	Failures map[Track]error
}

// Paths returns the produced media files in track order.
func (a Artifacts) Paths() []string {
	var paths []string
	for _, p := range []string{a.Audio, a.Video} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

type Config struct {
	// Timeline is copied for every run; ScratchDir, Progress and Logger
	// are filled in by the compiler.
	Timeline timeline.Config

	ScratchRoot    string
	OutputDir      string
	SubtitleFormat subtitle.Format

	Progress progress.Sink
	Logger   *logging.Logger
}

type Compiler struct {
	cfg    Config
	logger *logging.Logger
}

func New(cfg Config) *Compiler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.SubtitleFormat == "" {
		cfg.SubtitleFormat = subtitle.FormatNone
	}
	return &Compiler{cfg: cfg, logger: logger.Named("compile")}
}

// Validate parses the request input and checks the options.
func Validate(req Request) ([]sentence.Pair, error) {
	if !req.Audio && !req.Video {
		return nil, &ValidationError{Err: ErrNoTracks}
	}
	if err := req.Plan.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	pairs := sentence.ParseLines(req.Input)
	if len(pairs) == 0 {
		return nil, &ValidationError{Err: ErrNoPairs}
	}
	return pairs, nil
}

// Run compiles req. Validation failures and internal faults return an
// error; a failed track is recorded in Artifacts.Failures while the other
// track proceeds.
func (c *Compiler) Run(ctx context.Context, req Request) (art Artifacts, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Compilation aborted",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			for _, p := range art.Paths() {
				_ = os.Remove(p)
			}
			art = Artifacts{}
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	sink := progress.Monotonic(c.cfg.Progress)
	sink.Report(0, "Starting")

	pairs, err := Validate(req)
	if err != nil {
		return Artifacts{}, err
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = c.cfg.OutputDir
	}

	scratch, err := newScratch(c.cfg.ScratchRoot)
	if err != nil {
		return Artifacts{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			c.logger.Warnw("Failed to remove scratch directory", "dir", scratch, "error", rmErr)
		}
	}()
	sink.Report(5, "Scratch area prepared")

	c.logger.Infow("Compiling",
		"pairs", len(pairs),
		"source_reps", req.Plan.SourceReps,
		"target_reps", req.Plan.TargetReps,
		"audio", req.Audio,
		"video", req.Video,
		"scratch", scratch,
	)
	sink.Report(10, fmt.Sprintf("Parsed %d sentence pairs", len(pairs)))

	tcfg := c.cfg.Timeline
	tcfg.ScratchDir = filepath.Join(scratch, "work")
	tcfg.Progress = sink
	tcfg.Logger = c.logger
	m, err := timeline.New(tcfg)
	if err != nil {
		return Artifacts{}, err
	}

	art = Artifacts{Pairs: len(pairs), Failures: map[Track]error{}}
	offset := 10

	if req.Audio {
		phase := progress.Phase{Label: "Audio", Offset: offset, Share: trackShare}
		offset += trackShare
		art.Audio, art.AudioSubtitles = c.track(TrackAudio, &art, func(out string) (*timeline.Timeline, error) {
			return m.AudioTrack(ctx, pairs, req.Plan, out, phase)
		}, pairs, scratch, filepath.Join(outDir, AudioFileName))
	}

	if req.Video {
		phase := progress.Phase{Label: "Video", Offset: offset, Share: trackShare}
		art.Video, art.VideoSubtitles = c.track(TrackVideo, &art, func(out string) (*timeline.Timeline, error) {
			return m.VideoTrack(ctx, pairs, req.Plan, out, phase)
		}, pairs, scratch, filepath.Join(outDir, VideoFileName))
	}

	sink.Report(100, "Done")
	return art, nil
}

// track builds one artifact in scratch and publishes it on success.
func (c *Compiler) track(
	name Track,
	art *Artifacts,
	build func(out string) (*timeline.Timeline, error),
	pairs []sentence.Pair,
	scratch, target string,
) (string, string) {
	staged := filepath.Join(scratch, filepath.Base(target))

	tl, err := build(staged)
	if err == nil {
		err = moveFile(staged, target)
	}
	if err != nil {
		c.logger.Errorw("Track failed", "track", name, "error", err)
		art.Failures[name] = err
		return "", ""
	}

	c.logger.Infow("Track ready", "track", name, "path", target, "duration", tl.Total)

	if c.cfg.SubtitleFormat == subtitle.FormatNone {
		return target, ""
	}
	sub := subtitle.FromTimeline(tl, pairs, c.cfg.SubtitleFormat)
	subPath, err := subtitle.WriteSidecar(sub, target, c.cfg.SubtitleFormat)
	if err != nil {
		c.logger.Warnw("Failed to write subtitles", "track", name, "error", err)
		return target, ""
	}
	return target, subPath
}
