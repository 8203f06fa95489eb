package imrender

import "log/slog"

// RendererStats counts renderer activity since New.
type RendererStats struct {
	// FramesRendered counts RenderDrawData calls that recorded commands.
	FramesRendered int

	// FramesSkipped counts RenderDrawData calls with an empty display.
	FramesSkipped int

	// DrawCalls counts recorded DrawIndexedInstanced calls.
	DrawCalls int

	// ClippedCommands counts element commands dropped by an empty clip rectangle.
	ClippedCommands int

	Callbacks   int
	StateResets int

	VertexBufferGrowths int
	IndexBufferGrowths  int

	// DeviceObjectBuilds counts successful device object creations.
	DeviceObjectBuilds int
}

// LogValue implements slog.LogValuer.
func (s RendererStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frames", s.FramesRendered),
		slog.Int("skipped", s.FramesSkipped),
		slog.Int("draws", s.DrawCalls),
		slog.Int("clipped", s.ClippedCommands),
		slog.Int("callbacks", s.Callbacks),
		slog.Int("resets", s.StateResets),
		slog.Int("vb_growths", s.VertexBufferGrowths),
		slog.Int("ib_growths", s.IndexBufferGrowths),
		slog.Int("builds", s.DeviceObjectBuilds),
	)
}
