package imrender

// Version is the imrender release.
const Version = "0.1.0"

// RendererName is reported to the ui context as the renderer backend name.
const RendererName = "imrender " + Version
