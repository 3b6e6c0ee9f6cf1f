package timeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mgpai22/drillcast/internal/audio"
	ffmpegbin "github.com/mgpai22/drillcast/internal/ffmpeg"
	"github.com/mgpai22/drillcast/internal/layout"
	"github.com/mgpai22/drillcast/internal/progress"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/sequence"
	"github.com/mgpai22/drillcast/internal/synth"
	"github.com/mgpai22/drillcast/internal/video"
)

// silentSynth returns 1.234s of 24 kHz mono pcm, a length that does not
// land on the 10 fps frame grid.
type silentSynth struct{}

func (silentSynth) Synthesize(context.Context, string, string) (*synth.Audio, error) {
	return &synth.Audio{
		Data:       make([]byte, 24000*2*1234/1000),
		Format:     synth.FormatPCM,
		SampleRate: 24000,
		Channels:   1,
	}, nil
}

type blankFrames struct{}

func (blankFrames) RenderFrame(pair sentence.Pair, path string) (layout.Frame, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return layout.Frame{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return layout.Frame{}, err
	}
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.White)
		}
	}
	return layout.Frame{SourceLines: []string{pair.Source}}, png.Encode(f, img)
}

func TestVideoTrackDurationMatchesTimeline(t *testing.T) {
	if !ffmpegbin.Available() {
		t.Skip("ffmpeg not available; skipping integration test")
	}

	ctx := context.Background()
	m, err := New(Config{
		ScratchDir:     t.TempDir(),
		Synthesizer:    silentSynth{},
		Audio:          audio.NewEncoder(audio.DefaultOptions()),
		Video:          video.NewEncoder(video.Options{FrameRate: 10}),
		Frames:         blankFrames{},
		SourceLanguage: "ja",
		TargetLanguage: "en",
		AudioPauses:    sequence.AudioPauses(),
		VideoPauses:    sequence.VideoPauses(),
		Concurrency:    1,
		Progress:       progress.Nop,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out.mp4")
	tl, err := m.VideoTrack(ctx, examplePairs, sentence.Plan{SourceReps: 2, TargetReps: 3}, out, progress.Phase{Label: "Video", Share: 100})
	if err != nil {
		t.Fatalf("VideoTrack: %v", err)
	}

	got, err := audio.GetDuration(ctx, out)
	if err != nil {
		t.Fatalf("GetDuration: %v", err)
	}

	// half a frame of grid rounding plus the aac priming delay
	const tolerance = 50*time.Millisecond + 60*time.Millisecond
	if diff := (got - tl.Total).Abs(); diff > tolerance {
		t.Errorf("mp4 duration = %v, timeline = %v (off by %v)", got, tl.Total, diff)
	}
}
