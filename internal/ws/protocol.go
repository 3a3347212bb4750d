package ws

// Frame is one subscription delivery. Every frame carries the full value at
// Path, so a reader that reconnects only needs the first frame to resync.
type Frame struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Value  any    `json:"value"`
}

// ErrorFrame is sent before the server closes a stream it cannot serve.
type ErrorFrame struct {
	Error string `json:"error"`
}
