package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/drillcast/internal/ffmpeg"
)

// working format every clip is normalised to before concatenation
type Options struct {
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate of the final mp3 (e.g., "128k")
}

func DefaultOptions() Options {
	return Options{
		SampleRate: 44100,
		Channels:   1,
		Bitrate:    "128k",
	}
}

// describes a raw input that carries no container header
type RawFormat struct {
	Format     string // ffmpeg demuxer, e.g. "s16le"
	SampleRate int
	Channels   int
}

// ffmpeg-go backed audio encoder
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultOptions().SampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultOptions().Channels
	}
	if opts.Bitrate == "" {
		opts.Bitrate = DefaultOptions().Bitrate
	}
	return &Encoder{opts: opts}
}

func (e *Encoder) pcmKwargs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"acodec": "pcm_s16le",
		"ar":     e.opts.SampleRate,
		"ac":     e.opts.Channels,
	}
}

// writes a silent wav of exactly d
func (e *Encoder) Silence(ctx context.Context, d time.Duration, outputPath string) error {
	if d <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", d)
	}

	layout := "mono"
	if e.opts.Channels == 2 {
		layout = "stereo"
	}

	stream := ffmpeg.Input(
		fmt.Sprintf("anullsrc=r=%d:cl=%s", e.opts.SampleRate, layout),
		ffmpeg.KwArgs{"f": "lavfi", "t": Seconds(d)},
	).Output(outputPath, e.pcmKwargs())

	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("silence generation failed: %w", err)
	}
	return nil
}

// re-encodes inputPath to the working wav format; raw may be nil for
// self-describing inputs such as mp3
func (e *Encoder) Normalize(ctx context.Context, inputPath string, raw *RawFormat, outputPath string) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	inKwargs := ffmpeg.KwArgs{}
	if raw != nil {
		inKwargs["f"] = raw.Format
		inKwargs["ar"] = raw.SampleRate
		inKwargs["ac"] = raw.Channels
	}

	outKwargs := e.pcmKwargs()
	outKwargs["vn"] = ""

	stream := ffmpeg.Input(inputPath, inKwargs).Output(outputPath, outKwargs)
	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}
	return nil
}

// joins wav inputs in order; a .wav output stays lossless and
// sample-exact, anything else is encoded as mp3
func (e *Encoder) Concat(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no audio inputs to concatenate")
	}

	listPath := outputPath + ".txt"
	if err := WriteConcatList(listPath, inputs); err != nil {
		return err
	}
	defer func() { _ = os.Remove(listPath) }()

	stream := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, e.concatKwargs(outputPath))

	if err := run(ctx, stream, outputPath); err != nil {
		return fmt.Errorf("audio concatenation failed: %w", err)
	}
	return nil
}

func (e *Encoder) concatKwargs(outputPath string) ffmpeg.KwArgs {
	if strings.EqualFold(filepath.Ext(outputPath), ".wav") {
		return e.pcmKwargs()
	}
	return ffmpeg.KwArgs{
		"acodec": "libmp3lame",
		"b:a":    e.opts.Bitrate,
		"ar":     e.opts.SampleRate,
		"ac":     e.opts.Channels,
	}
}

// probes the duration of path
func (e *Encoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	return GetDuration(ctx, path)
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Seconds formats d for ffmpeg's -t option with millisecond precision.
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// WriteConcatList writes an ffmpeg concat demuxer script for files.
func WriteConcatList(listPath string, files []string) error {
	var sb strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		sb.WriteString("'\n")
	}

	if err := os.MkdirAll(filepath.Dir(listPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// runs one ffmpeg invocation, creating the output directory first
func run(ctx context.Context, stream *ffmpeg.Stream, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
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
