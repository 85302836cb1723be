// Package media talks to discovered streams once their credentials and
// route are known: it grabs thumbnails through ffmpeg and checks that a
// stream actually delivers RTP packets.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"camscout/internal/domain"
)

// CommandRunner runs an external program to completion
type CommandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Thumbnailer grabs a single frame from a stream with ffmpeg
type Thumbnailer struct {
	ffmpeg  string
	dir     string
	timeout time.Duration
	run     CommandRunner
	now     func() time.Time
	logger  *zap.Logger
}

// NewThumbnailer creates a new thumbnailer writing under dir
func NewThumbnailer(ffmpeg, dir string, timeout time.Duration, logger *zap.Logger) *Thumbnailer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Thumbnailer{
		ffmpeg:  ffmpeg,
		dir:     dir,
		timeout: timeout,
		run:     runCommand,
		now:     time.Now,
		logger:  logger.Named("thumbnail"),
	}
}

// Path returns where the thumbnail of stream taken at t is stored
func (th *Thumbnailer) Path(stream domain.Stream, t time.Time) string {
	return filepath.Join(th.dir, stream.Address, strconv.FormatInt(t.Unix(), 10)+".jpg")
}

// Args builds the ffmpeg command line grabbing one 320x240 jpeg
func Args(url, output string) []string {
	return []string{
		"-y", "-nostdin", "-loglevel", "quiet",
		"-i", url,
		"-vcodec", "mjpeg",
		"-vframes", "1",
		"-an",
		"-f", "image2",
		"-s", "320x240",
		output,
	}
}

// Generate writes a thumbnail of stream and returns its path
func (th *Thumbnailer) Generate(ctx context.Context, stream domain.Stream) (string, error) {
	output := th.Path(stream, th.now())
	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	if th.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, th.timeout)
		defer cancel()
	}

	if err := th.run(ctx, th.ffmpeg, Args(stream.URL(), output)...); err != nil {
		return "", fmt.Errorf("ffmpeg failed for %s: %w", stream.Key(), err)
	}
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("ffmpeg produced no thumbnail for %s: %w", stream.Key(), err)
	}

	th.logger.Debug("Thumbnail generated", zap.Stringer("stream", stream.Key()), zap.String("path", output))
	return output, nil
}
