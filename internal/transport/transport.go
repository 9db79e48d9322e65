package transport

import "context"

// Transport is a byte-level channel carrying CAT traffic. ReadByte and
// Write may be called from different goroutines; implementations
// serialize writes internally.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Connected() bool
	// ReadByte returns the next byte from the wire. ok is false when no
	// byte arrived within the transport's poll window; the caller
	// decides how long to wait before trying again.
	ReadByte(ctx context.Context) (b byte, ok bool, err error)
	Write(ctx context.Context, buf []byte) error
	Close() error
}

// StatusTargetResolver is implemented by transports that can describe
// their endpoint for status reporting.
type StatusTargetResolver interface {
	StatusTarget() string
}
