package video

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/drillcast/internal/audio"
	ffmpegbin "github.com/mgpai22/drillcast/internal/ffmpeg"
)

// holds options for clip encoding
type Options struct {
	FrameRate    int    // Output frame rate
	VideoCodec   string // e.g. "libx264"
	AudioCodec   string // e.g. "aac"
	AudioBitrate string // e.g. "128k"
	PixelFormat  string
}

// returns sensible defaults for still-frame lessons
func DefaultOptions() Options {
	return Options{
		FrameRate:    10,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		PixelFormat:  "yuv420p",
	}
}

// default implementation using ffmpeg
//
// Stills are encoded without audio and cut by frame count, so the
// concatenated picture track sits on the frame grid. The soundtrack is
// woven separately and muxed once, which keeps it sample-exact.
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	def := DefaultOptions()
	if opts.FrameRate <= 0 {
		opts.FrameRate = def.FrameRate
	}
	if opts.VideoCodec == "" {
		opts.VideoCodec = def.VideoCodec
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = def.AudioCodec
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = def.AudioBitrate
	}
	if opts.PixelFormat == "" {
		opts.PixelFormat = def.PixelFormat
	}
	return &Encoder{opts: opts}
}

func (e *Encoder) FrameRate() int {
	return e.opts.FrameRate
}

// Frames is the number of frames shown for the span [start, end) when
// both edges are rounded to the nearest frame. Summed over consecutive
// spans it never drifts more than half a frame from the exact time.
func Frames(start, end time.Duration, fps int) int {
	edge := func(d time.Duration) int {
		return int(math.Round(d.Seconds() * float64(fps)))
	}
	return max(edge(end)-edge(start), 0)
}

// still clips share every parameter so the concat step can stream-copy
func (e *Encoder) stillKwargs(frames int) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"c:v":      e.opts.VideoCodec,
		"tune":     "stillimage",
		"pix_fmt":  e.opts.PixelFormat,
		"r":        e.opts.FrameRate,
		"frames:v": frames,
		"an":       "",
	}
}

// encodes framePath as a silent clip exactly frames long
func (e *Encoder) StillClip(ctx context.Context, framePath string, frames int, outputPath string) error {
	if frames <= 0 {
		return fmt.Errorf("clip must span at least one frame, got %d", frames)
	}
	if _, err := os.Stat(framePath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", framePath)
	}

	stream := ffmpeg.Input(framePath, ffmpeg.KwArgs{
		"loop":      1,
		"framerate": e.opts.FrameRate,
	}).Output(outputPath, e.stillKwargs(frames))

	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("still clip encoding failed: %w", err)
	}
	return nil
}

// joins clips in order without re-encoding
func (e *Encoder) Concat(ctx context.Context, clips []string, outputPath string) error {
	if len(clips) == 0 {
		return fmt.Errorf("no video clips to concatenate")
	}

	listPath := outputPath + ".txt"
	if err := audio.WriteConcatList(listPath, clips); err != nil {
		return err
	}
	defer func() { _ = os.Remove(listPath) }()

	stream := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy"})

	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("video concatenation failed: %w", err)
	}
	return nil
}

// combines a silent picture track with its soundtrack
func (e *Encoder) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	for _, p := range []string{videoPath, audioPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", p)
		}
	}

	pic := ffmpeg.Input(videoPath).Video()
	snd := ffmpeg.Input(audioPath).Audio()

	stream := ffmpeg.Output([]*ffmpeg.Stream{pic, snd}, outputPath, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      e.opts.AudioCodec,
		"b:a":      e.opts.AudioBitrate,
		"movflags": "+faststart",
	})

	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("muxing failed: %w", err)
	}
	return nil
}

func run(ctx context.Context, stream *ffmpeg.Stream, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	return stream.
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
}
