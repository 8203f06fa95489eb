package imrender

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.vertexSlack != 5000 || o.indexSlack != 10000 {
		t.Errorf("slack = %d/%d, want 5000/10000", o.vertexSlack, o.indexSlack)
	}
	if _, ok := o.compiler.(NagaCompiler); !ok {
		t.Errorf("compiler = %T, want NagaCompiler", o.compiler)
	}
	if o.logger != nil {
		t.Error("default options carry a logger")
	}
}

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	tests := []struct {
		name  string
		opt   Option
		check func(o options) bool
	}{
		{"vertex slack", WithVertexSlack(7), func(o options) bool { return o.vertexSlack == 7 }},
		{"negative vertex slack ignored", WithVertexSlack(-1), func(o options) bool { return o.vertexSlack == DefaultVertexSlack }},
		{"index slack", WithIndexSlack(0), func(o options) bool { return o.indexSlack == 0 }},
		{"negative index slack ignored", WithIndexSlack(-5), func(o options) bool { return o.indexSlack == DefaultIndexSlack }},
		{"compiler", WithShaderCompiler(stubCompiler{}), func(o options) bool { _, ok := o.compiler.(stubCompiler); return ok }},
		{"nil compiler ignored", WithShaderCompiler(nil), func(o options) bool { _, ok := o.compiler.(NagaCompiler); return ok }},
		{"logger", WithLogger(logger), func(o options) bool { return o.logger == logger }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			if !tt.check(o) {
				t.Errorf("option not applied: %+v", o)
			}
		})
	}
}

func TestRendererLoggerOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, 1, WithLogger(logger))
	f.render(t, f.frame(t, quads(1)))
	if !bytes.Contains(buf.Bytes(), []byte("vertex buffer grown")) {
		t.Errorf("renderer logger missed buffer growth:\n%s", buf.String())
	}
}
