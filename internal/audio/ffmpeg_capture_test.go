package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"safetour/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm'\nsleep 2\n")
	capture := NewFFMPEGCapture(FFMPEGOptions{Command: script, StopTimeout: 500 * time.Millisecond})

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "pcm") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(FFMPEGOptions{Command: script})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") || !strings.Contains(err.Error(), "no such device") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCaptureArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  ports.AudioConfig
		want string
	}{
		{name: "defaults", cfg: ports.AudioConfig{}, want: "-f pulse -i default -ac 1 -ar 16000 -f s16le"},
		{name: "mac", cfg: ports.AudioConfig{SampleRate: 48000, Channels: 2, InputFormat: "avfoundation", InputDevice: ":0"}, want: "-f avfoundation -i :0 -ac 2 -ar 48000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if args := strings.Join(captureArgs(tc.cfg), " "); !strings.Contains(args, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, args)
			}
		})
	}
}

func TestCaptureEndsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "endless.sh", "#!/usr/bin/env bash\nwhile true; do printf 'x'; sleep 0.05; done\n")
	ctx, cancel := context.WithCancel(context.Background())
	session, err := NewFFMPEGCapture(FFMPEGOptions{Command: script}).Start(ctx, ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(io.Discard, session)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("reads did not end after cancellation")
	}
	_ = session.Stop()
}

func TestIgnoreExitStatus(t *testing.T) {
	t.Parallel()

	if err := exec.Command("bash", "-c", "exit 3").Run(); ignoreExitStatus(err) != nil {
		t.Fatalf("exit status should be ignored, got %v", err)
	}
	other := errors.New("pipe broke")
	if !errors.Is(ignoreExitStatus(other), other) {
		t.Fatalf("other errors must pass through")
	}
}

func TestTailBufferKeepsRecentBytes(t *testing.T) {
	t.Parallel()

	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defgh"))
	if got := b.String(); got != "defgh" {
		t.Fatalf("unexpected tail: %q", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
