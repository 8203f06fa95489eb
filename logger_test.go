package imrender

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs did not return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return nopHandler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)
	if Logger() != custom {
		t.Error("Logger() did not return the logger set via SetLogger")
	}

	f := newFixture(t, 1)
	if err := f.r.NewFrame(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "device objects created") {
		t.Errorf("log output lacks device object creation:\n%s", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) stored nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}

// loggingDevice records the logger handed to it.
type loggingDevice struct {
	gfx.Device
	logger *slog.Logger
}

func (d *loggingDevice) SetLogger(l *slog.Logger) { d.logger = l }

func TestNewPropagatesLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	dev := &loggingDevice{}
	if _, err := New(ui.NewContext(), dev, 1, gfx.FormatR8G8B8A8Unorm, 0, 0, WithLogger(custom)); err != nil {
		t.Fatal(err)
	}
	if dev.logger != custom {
		t.Error("New did not pass the renderer logger to the device")
	}
}

func TestSetLoggerConcurrent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			} else {
				Logger().Debug("concurrent")
			}
		}()
	}
	wg.Wait()
}

func TestStatsLogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	log.Info("stats", "renderer", RendererStats{
		FramesRendered: 1, FramesSkipped: 2, DrawCalls: 3, ClippedCommands: 4, Callbacks: 5,
		StateResets: 6, VertexBufferGrowths: 7, IndexBufferGrowths: 8, DeviceObjectBuilds: 9,
	})
	for _, want := range []string{
		"renderer.frames=1", "renderer.skipped=2", "renderer.draws=3", "renderer.clipped=4",
		"renderer.callbacks=5", "renderer.resets=6", "renderer.vb_growths=7", "renderer.ib_growths=8",
		"renderer.builds=9",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output lacks %s:\n%s", want, buf.String())
		}
	}
}
