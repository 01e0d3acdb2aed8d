//go:build ffmpeg_cgo

package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/nghego/nghego/internal/apperr"
)

// legacy ffmpeg-binary transcoder, compiled only with the ffmpeg_cgo
// build tag; no code in the repository constructs it, and transcode.go
// (go-astiav) is compiled in every build. Grounded on the teacher's
// internal/services/transcoder.go Args() builder; degraded relative to
// the go-astiav pipeline in transcode.go since it cannot honor an
// explicit filter graph or a custom in-process IO sink, and instead
// shells out and streams ffmpeg's stdout.
type LegacyTranscoder struct {
	FFmpegPath string
}

func NewLegacyTranscoder(ffmpegPath string) *LegacyTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &LegacyTranscoder{FFmpegPath: ffmpegPath}
}

func (t *LegacyTranscoder) args(req TranscodeRequest) ([]string, error) {
	bitrate := req.Bitrate
	if bitrate == 0 {
		bitrate = defaultBitrate[req.Format]
	}

	var seekArgs []string
	if req.SeekSec > 0 {
		seekArgs = []string{"-ss", fmt.Sprintf("%.3f", req.SeekSec)}
	}
	base := append(seekArgs, "-i", req.SourcePath, "-vn")

	switch req.Format {
	case FormatMP3:
		return append(base, "-acodec", "libmp3lame", "-b:a", fmt.Sprintf("%dk", bitrate), "-f", "mp3", "-"), nil
	case FormatAAC:
		return append(base, "-c:a", "aac", "-b:a", fmt.Sprintf("%dk", bitrate), "-f", "adts", "-"), nil
	case FormatOpus:
		return append(base, "-c:a", "libopus", "-b:a", fmt.Sprintf("%dk", bitrate), "-f", "ogg", "-ar", "48000", "-"), nil
	default:
		return nil, apperr.New(apperr.KindInvalidParameter, fmt.Sprintf("unsupported transcode format %q", req.Format))
	}
}

// Transcode shells out to ffmpeg and streams stdout chunk by chunk.
func (t *LegacyTranscoder) Transcode(ctx context.Context, req TranscodeRequest) (*Result, error) {
	args, err := t.args(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "pipe ffmpeg stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrap(apperr.KindTranscode, "start ffmpeg", err)
	}

	out := make(chan []byte, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		buf := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-ctx.Done():
					_ = cmd.Process.Kill()
					errc <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				errc <- apperr.Wrap(apperr.KindTranscode, "read ffmpeg stdout", err)
				_ = cmd.Process.Kill()
				return
			}
		}
		errc <- cmd.Wait()
	}()

	var capturedErr error
	return &Result{
		Chunks: out,
		Err: func() error {
			select {
			case capturedErr = <-errc:
			default:
			}
			return capturedErr
		},
	}, nil
}
