package disk

import "bytes"

// ByteStream is a one-shot ReadCloser over an in-memory snapshot. Once
// closed, further reads fail with ErrStreamConsumed instead of silently
// yielding nothing.
type ByteStream struct {
	reader *bytes.Reader
	closed bool
}

func NewByteStream(content []byte) *ByteStream {
	return &ByteStream{reader: bytes.NewReader(content)}
}

func (b *ByteStream) Read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrStreamConsumed
	}
	return b.reader.Read(p)
}

func (b *ByteStream) Close() error {
	b.closed = true
	return nil
}
