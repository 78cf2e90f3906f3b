// Package ffmpeg grabs still frames from videos through the ffmpeg binary
// so they can be analysed like any other image.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// pngSignature starts every PNG stream.
var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// ErrNoFrame is returned when ffmpeg produced no image data.
var ErrNoFrame = errors.New("ffmpeg: no frame in output")

// ParseTimestamp converts "HH:MM:SS(.fff)", "MM:SS" or plain seconds into
// seconds.
func ParseTimestamp(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)

	// Handle simple seconds format
	if seconds, err := strconv.ParseFloat(ts, 64); err == nil {
		if !validOffset(seconds) {
			return 0, fmt.Errorf("invalid time format: %s", ts)
		}
		return seconds, nil
	}

	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", ts)
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || !validOffset(v) {
			return 0, fmt.Errorf("invalid time format: %s", ts)
		}
		total = total*60 + v
	}
	return total, nil
}

// validOffset rejects negative and non-finite values such as "NaN" or "Inf",
// which ParseFloat accepts.
func validOffset(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

// FrameArgs returns the ffmpeg arguments that write the frame at offset
// seconds of input to stdout as a single PNG.
func FrameArgs(input string, offset float64) []string {
	return []string{
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-an",
		"-f", "image2pipe",
		"-pix_fmt", "rgb24",
		"-vcodec", "png",
		"pipe:1",
	}
}

// ExtractFrame runs ffmpeg and returns the PNG-encoded frame found at the
// timestamp at (see ParseTimestamp) of the video input.
func ExtractFrame(ctx context.Context, input, at string, log *zap.Logger) ([]byte, error) {
	if log == nil {
		log = zap.NewNop()
	}
	offset, err := ParseTimestamp(at)
	if err != nil {
		return nil, err
	}

	// Check if ffmpeg is available
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in $PATH: %w", err)
	}

	args := FrameArgs(input, offset)
	log.Debug("running ffmpeg", zap.String("bin", bin), zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg error: %w - stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return TrimToPNG(&stdout)
}

// TrimToPNG skips anything in r before the PNG signature and returns the
// remaining bytes.
func TrimToPNG(r io.Reader) ([]byte, error) {
	br := bufio.NewReaderSize(r, 1024*1024)
	for {
		signature, err := br.Peek(len(pngSignature))
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFrame
		}
		if err != nil {
			return nil, err
		}
		if bytes.Equal(signature, pngSignature) {
			return io.ReadAll(br)
		}

		// Not a PNG signature, discard a byte and try again
		if _, err := br.Discard(1); err != nil {
			return nil, err
		}
	}
}
