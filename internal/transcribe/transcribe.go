// Package transcribe turns audio files into plain-text transcripts with an
// external speech recognizer and reads the transcripts back.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hession/lyricsleuth/internal/logger"
)

// ErrNoAudio is returned when a folder holds no audio files to transcribe.
var ErrNoAudio = errors.New("no audio files found")

// DefaultExtensions are the audio files picked up from a folder.
var DefaultExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}

// Transcriber writes the transcript of audioPath into outDir and returns its path.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outDir string) (string, error)
}

// Config configures WhisperCLI.
type Config struct {
	Command  string // executable, "whisper" when empty
	Model    string // tiny, base, small, medium, large
	Language string // empty lets whisper detect it
	Timeout  time.Duration
}

// WhisperCLI runs the openai-whisper command line tool.
type WhisperCLI struct {
	command  string
	model    string
	language string
	timeout  time.Duration
}

// NewWhisperCLI creates a transcriber.
func NewWhisperCLI(cfg Config) *WhisperCLI {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &WhisperCLI{
		command:  cfg.Command,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
	}
}

// Available reports whether the whisper executable can be found.
func (w *WhisperCLI) Available() bool {
	_, err := exec.LookPath(w.command)
	return err == nil
}

func (w *WhisperCLI) args(audioPath, outDir string) []string {
	args := []string{
		audioPath,
		"--model", w.model,
		"--output_format", "txt",
		"--output_dir", outDir,
	}
	if w.language != "" {
		args = append(args, "--language", w.language)
	}
	return args
}

// Transcribe runs whisper on one file.
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create transcript directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.command, w.args(audioPath, outDir)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("transcribing %s: %w", filepath.Base(audioPath), ctx.Err())
		}
		return "", fmt.Errorf("whisper failed on %s: %v (%s)", filepath.Base(audioPath), err, strings.TrimSpace(string(out)))
	}

	path := TranscriptPath(audioPath, outDir)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("whisper produced no transcript for %s: %w", filepath.Base(audioPath), err)
	}
	return path, nil
}

// TranscriptPath is where the transcript of audioPath lands in outDir.
func TranscriptPath(audioPath, outDir string) string {
	base := filepath.Base(audioPath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
}

// AudioFiles lists the files in folder with one of exts, sorted by name.
func AudioFiles(folder string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.ContainsFunc(exts, func(x string) bool { return strings.EqualFold(x, ext) }) {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}
	return files, nil
}

// Folder transcribes every audio file in folder into outDir. A file that
// fails is logged and reported through progress; the rest continue.
func Folder(ctx context.Context, t Transcriber, folder, outDir string, exts []string, progress func(file string, err error)) ([]string, error) {
	files, err := AudioFiles(folder, exts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoAudio, folder)
	}

	var written []string
	for _, f := range files {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		path, err := t.Transcribe(ctx, f, outDir)
		if err != nil {
			logger.Warn("transcription of %s failed: %v", f, err)
		} else {
			logger.Info("transcribed %s -> %s", f, path)
			written = append(written, path)
		}
		if progress != nil {
			progress(filepath.Base(f), err)
		}
	}
	return written, nil
}
