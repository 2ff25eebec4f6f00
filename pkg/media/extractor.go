// Package media extracts still frames and mono PCM audio from screen
// recordings using ffmpeg. Extraction is deterministic for identical input
// and sampling parameters; no AI is involved at this layer.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/recflow/recflow/pkg/log"
)

const (
	// DefaultFFmpegPath resolves ffmpeg from PATH.
	DefaultFFmpegPath = "ffmpeg"

	// DefaultFrameRate samples one frame per second.
	DefaultFrameRate = 1.0

	// AudioSampleRate is the fixed output sample rate for extracted audio.
	AudioSampleRate = 16000

	// MaxVideoSizeBytes is the upload ceiling: 300 MiB.
	MaxVideoSizeBytes = 300 << 20

	defaultFFmpegTimeout = 5 * time.Minute
)

var (
	// ErrNoFrames indicates the encoder ran but produced no frame files.
	// This is a hard failure, distinct from a video that merely has no
	// audible or visible content.
	ErrNoFrames = errors.New("frame extraction produced no frames")

	// ErrFFmpegNotFound indicates the ffmpeg binary is unavailable.
	ErrFFmpegNotFound = errors.New("ffmpeg not found")

	// ErrVideoNotFound indicates the video file does not exist.
	ErrVideoNotFound = errors.New("video file not found")

	// ErrVideoTooLarge indicates the video exceeds the size ceiling.
	ErrVideoTooLarge = errors.New("video exceeds maximum size")

	// ErrUnsupportedFormat indicates the video container is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported video format")
)

var supportedContainers = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".webm": {},
	".mkv":  {},
	".avi":  {},
}

// FrameSet is the ordered result of frame extraction. It owns the temporary
// directory holding the frame images; Close removes it.
type FrameSet struct {
	Paths []string

	dir string
}

// NewFrameSet wraps already-extracted frames rooted at dir. Close removes dir.
func NewFrameSet(paths []string, dir string) *FrameSet {
	return &FrameSet{Paths: paths, dir: dir}
}

// Close removes the temporary frame directory. Best-effort; errors are
// returned for logging, never fatal.
func (f *FrameSet) Close() error {
	if f.dir == "" {
		return nil
	}

	err := os.RemoveAll(f.dir)
	f.dir = ""

	return err
}

// AudioFile is the single-channel PCM WAV extracted from a recording. It owns
// its temporary file; Close removes it.
type AudioFile struct {
	Path string

	dir string
}

// NewAudioFile wraps an already-extracted audio file rooted at dir.
func NewAudioFile(path, dir string) *AudioFile {
	return &AudioFile{Path: path, dir: dir}
}

func (a *AudioFile) Close() error {
	if a.dir == "" {
		return nil
	}

	err := os.RemoveAll(a.dir)
	a.dir = ""

	return err
}

// Extractor runs ffmpeg to derive frames and audio from a video file.
type Extractor struct {
	ffmpegPath string
	timeout    time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFFmpegPath overrides the ffmpeg binary location.
func WithFFmpegPath(path string) Option {
	return func(e *Extractor) {
		e.ffmpegPath = path
	}
}

// WithTimeout bounds each ffmpeg invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = timeout
	}
}

// NewExtractor creates a media extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		ffmpegPath: DefaultFFmpegPath,
		timeout:    defaultFFmpegTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Validate rejects a video that is missing, in an unsupported container, or
// over the size ceiling. Duration is deliberately not checked here; duration
// limits are a UX concern upstream of the pipeline.
func (e *Extractor) Validate(videoPath string) error {
	info, err := os.Stat(videoPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrVideoNotFound, videoPath)
		}

		return fmt.Errorf("failed to stat video: %w", err)
	}

	if info.Size() > MaxVideoSizeBytes {
		return fmt.Errorf("%w: %d bytes", ErrVideoTooLarge, info.Size())
	}

	ext := strings.ToLower(filepath.Ext(videoPath))
	if _, ok := supportedContainers[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	return nil
}

// ExtractFrames samples still frames at a fixed rate into a temporary
// directory and returns their paths in chronological order. Zero output
// files is a hard failure.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, frameRate float64) (*FrameSet, error) {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	dir, err := os.MkdirTemp("", "recflow-frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	pattern := filepath.Join(dir, "frame-%04d.jpg")
	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", frameRate),
		"-q:v", "2",
		pattern,
	}

	err = e.run(ctx, args)
	if err != nil {
		_ = os.RemoveAll(dir)

		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame-*.jpg"))
	if err != nil {
		_ = os.RemoveAll(dir)

		return nil, fmt.Errorf("failed to list frames: %w", err)
	}

	if len(paths) == 0 {
		_ = os.RemoveAll(dir)

		return nil, ErrNoFrames
	}

	// %04d numbering makes lexical order chronological.
	sort.Strings(paths)

	return &FrameSet{Paths: paths, dir: dir}, nil
}

// ExtractAudio produces a mono 16 kHz PCM WAV from the recording's audio
// track. Callers treat failure here as "no narration available", not as a
// pipeline abort.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (*AudioFile, error) {
	dir, err := os.MkdirTemp("", "recflow-audio-")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	outputPath := filepath.Join(dir, "narration.wav")
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", AudioSampleRate),
		"-acodec", "pcm_s16le",
		outputPath,
	}

	err = e.run(ctx, args)
	if err != nil {
		_ = os.RemoveAll(dir)

		return nil, fmt.Errorf("audio extraction failed: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		_ = os.RemoveAll(dir)

		return nil, fmt.Errorf("audio extraction produced no output: %w", err)
	}

	return &AudioFile{Path: outputPath, dir: dir}, nil
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	//nolint:gosec // G204: ffmpegPath is operator configuration, not user input
	cmd := exec.CommandContext(runCtx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithModule("media").Debug("Running ffmpeg", "args", args)

	err := cmd.Run()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", e.timeout)
		}

		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return ErrFFmpegNotFound
		}

		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}
