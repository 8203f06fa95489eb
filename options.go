package imrender

import "log/slog"

// Default buffer slack, in elements, added whenever a frame outgrows its
// vertex or index buffer.
const (
	DefaultVertexSlack = 5000
	DefaultIndexSlack  = 10000
)

// Option configures a Renderer.
//
// Example:
//
//	r, err := imrender.New(ctx, dev, 2, gfx.FormatR8G8B8A8Unorm, cpu, gpu,
//	    imrender.WithVertexSlack(20000),
//	    imrender.WithLogger(logger),
//	)
type Option func(*options)

type options struct {
	vertexSlack int
	indexSlack  int
	compiler    ShaderCompiler
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		vertexSlack: DefaultVertexSlack,
		indexSlack:  DefaultIndexSlack,
		compiler:    NagaCompiler{},
	}
}

// WithVertexSlack sets how many vertices beyond the frame total a grown
// vertex buffer holds. Negative values are ignored.
func WithVertexSlack(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.vertexSlack = n
		}
	}
}

// WithIndexSlack sets how many indices beyond the frame total a grown
// index buffer holds. Negative values are ignored.
func WithIndexSlack(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.indexSlack = n
		}
	}
}

// WithShaderCompiler replaces the WGSL compiler used to build the pipeline.
func WithShaderCompiler(c ShaderCompiler) Option {
	return func(o *options) {
		if c != nil {
			o.compiler = c
		}
	}
}

// WithLogger gives the renderer its own logger instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
