package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/samlnz/PS-controller/internal/monitor"
)

// ErrPermissionDenied is returned by sources when the OS refuses access to
// the camera or microphone. It fails only the capture attempt: the agent
// reverts the session and keeps polling.
var ErrPermissionDenied = errors.New("permission_denied")

// FrameStream is an open camera handle. Capture honors the quality policy
// it is given; Close must be safe to call on every exit path.
type FrameStream interface {
	Capture(ctx context.Context, spec monitor.FrameSpec) (string, error)
	Close() error
}

// FrameSource opens camera streams.
type FrameSource interface {
	Open(ctx context.Context) (FrameStream, error)
}

// AudioStream is an open microphone handle yielding encoded chunks.
type AudioStream interface {
	Capture(ctx context.Context) (string, error)
	Close() error
}

// AudioSource opens microphone streams.
type AudioSource interface {
	Open(ctx context.Context) (AudioStream, error)
}

// SyntheticFrameSource fabricates frames sized by the quality policy. It
// stands in for a real capture device on development boxes and in tests.
type SyntheticFrameSource struct{}

func (SyntheticFrameSource) Open(ctx context.Context) (FrameStream, error) {
	return &syntheticFrameStream{}, nil
}

type syntheticFrameStream struct {
	n int
}

func (s *syntheticFrameStream) Capture(ctx context.Context, spec monitor.FrameSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.n++
	payload := fmt.Sprintf("frame %d w=%d q=%d", s.n, spec.MaxWidth, spec.JPEGQuality)
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

func (s *syntheticFrameStream) Close() error { return nil }

// SyntheticAudioSource fabricates audio chunks.
type SyntheticAudioSource struct{}

func (SyntheticAudioSource) Open(ctx context.Context) (AudioStream, error) {
	return &syntheticAudioStream{}, nil
}

type syntheticAudioStream struct {
	n int
}

func (s *syntheticAudioStream) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.n++
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("audio %d", s.n))), nil
}

func (s *syntheticAudioStream) Close() error { return nil }
