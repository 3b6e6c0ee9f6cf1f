package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ffmpegbin "github.com/mgpai22/drillcast/internal/ffmpeg"
)

func TestSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{800 * time.Millisecond, "0.800"},
		{2500 * time.Millisecond, "2.500"},
		{time.Minute + 1500*time.Microsecond, "60.002"},
	}
	for _, tt := range tests {
		if got := Seconds(tt.d); got != tt.want {
			t.Errorf("Seconds(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseProbeDuration(t *testing.T) {
	d, err := parseProbeDuration([]byte(`{"format": {"duration": "1.234000"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1234*time.Millisecond {
		t.Errorf("duration = %v, want 1.234s", d)
	}

	if _, err := parseProbeDuration([]byte(`{"format": {}}`)); err == nil {
		t.Error("expected error for missing duration")
	}
	if _, err := parseProbeDuration([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	files := []string{
		filepath.Join(dir, "a.wav"),
		filepath.Join(dir, "it's.wav"),
		filepath.Join(dir, "a.wav"),
	}

	if err := WriteConcatList(listPath, files); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != lines[2] {
		t.Error("repeated inputs should produce repeated entries")
	}
	if !strings.Contains(lines[1], `it'\''s.wav`) {
		t.Errorf("quote not escaped: %s", lines[1])
	}
}

func TestNewEncoderDefaults(t *testing.T) {
	e := NewEncoder(Options{})
	if e.opts != DefaultOptions() {
		t.Errorf("opts = %+v, want defaults", e.opts)
	}
}

func TestEncoderRejectsNonPositiveSilence(t *testing.T) {
	e := NewEncoder(DefaultOptions())
	if err := e.Silence(context.Background(), 0, filepath.Join(t.TempDir(), "x.wav")); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestEncoderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewEncoder(DefaultOptions()).Silence(ctx, time.Second, filepath.Join(t.TempDir(), "x.wav"))
	if err == nil {
		t.Error("expected error for canceled context")
	}
}

// Integration test: only runs when ffmpeg and ffprobe are installed
func TestEncoderSilenceAndConcatIntegration(t *testing.T) {
	if !ffmpegbin.Available() {
		t.Skip("ffmpeg not available; skipping integration test")
	}

	ctx := context.Background()
	dir := t.TempDir()
	e := NewEncoder(DefaultOptions())

	short := filepath.Join(dir, "short.wav")
	long := filepath.Join(dir, "long.wav")
	if err := e.Silence(ctx, 500*time.Millisecond, short); err != nil {
		t.Fatalf("Silence: %v", err)
	}
	if err := e.Silence(ctx, 800*time.Millisecond, long); err != nil {
		t.Fatalf("Silence: %v", err)
	}

	d, err := e.Duration(ctx, short)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if diff := d - 500*time.Millisecond; diff < -10*time.Millisecond || diff > 10*time.Millisecond {
		t.Errorf("silence duration = %v, want ~500ms", d)
	}

	out := filepath.Join(dir, "out.mp3")
	if err := e.Concat(ctx, []string{short, long, short}, out); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	total, err := e.Duration(ctx, out)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if total < 1700*time.Millisecond || total > 1900*time.Millisecond {
		t.Errorf("concat duration = %v, want ~1.8s", total)
	}
}

func TestConcatKwargsByExtension(t *testing.T) {
	e := NewEncoder(DefaultOptions())
	if got := e.concatKwargs("track.WAV")["acodec"]; got != "pcm_s16le" {
		t.Errorf("wav acodec = %v, want pcm_s16le", got)
	}
	if got := e.concatKwargs("output_audio.mp3")["acodec"]; got != "libmp3lame" {
		t.Errorf("mp3 acodec = %v, want libmp3lame", got)
	}
}
