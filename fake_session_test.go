package wurtc

import "sync"

// Compile-time interface check, mirroring the teacher's mockTransport
// pattern for adapter.Transport.
var _ dtlsSession = (*fakeSession)(nil)

// fakeSession stands in for a *dtlsengine.Session in scenario tests: it
// never performs a DTLS handshake, just records what would have been
// written out and lets the test feed "decoded" SCTP datagrams directly.
type fakeSession struct {
	mu      sync.Mutex
	written [][]byte
	decoded chan []byte
	closed  bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{decoded: make(chan []byte, 32)}
}

func (f *fakeSession) Feed(data []byte) {}

func (f *fakeSession) WriteApplication(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.decoded)
}

func (f *fakeSession) Decoded() <-chan []byte {
	return f.decoded
}

// TakeOutbound always reports nothing buffered: the fake has no real
// DTLS record layer producing ciphertext, so there is nothing for a
// dispatch loop to drain.
func (f *fakeSession) TakeOutbound() [][]byte {
	return nil
}

// deliver pushes a decoded application datagram as if it had just come
// off the DTLS record layer.
func (f *fakeSession) deliver(data []byte) {
	f.decoded <- data
}

func (f *fakeSession) lastWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

func (f *fakeSession) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}
