// Package sshproto defines the plumbing contracts shared by the SSH version
// handshake and the Rlogin backend: an abstract socket, a frontend sink, a
// prompt facility, a configuration accessor, and the byte FIFO both state
// machines parse from.
package sshproto

import "bytes"

// ByteChain is an ordered FIFO of bytes delivered by the socket at arbitrary
// granularity. It never copies bytes it does not need to retain: Peek
// returns a view into the live backing slice.
type ByteChain struct {
	buf []byte
}

// NewByteChain returns an empty chain.
func NewByteChain() *ByteChain {
	return &ByteChain{}
}

// Append adds bytes to the tail of the chain.
func (c *ByteChain) Append(b []byte) {
	c.buf = append(c.buf, b...)
}

// Len returns the number of unconsumed bytes.
func (c *ByteChain) Len() int {
	return len(c.buf)
}

// Peek returns up to n leading bytes without consuming them. The returned
// slice aliases the chain's backing array and is only valid until the next
// Append or Consume call.
func (c *ByteChain) Peek(n int) []byte {
	if n > len(c.buf) {
		n = len(c.buf)
	}
	return c.buf[:n]
}

// Consume removes the first n bytes from the chain. It panics if n exceeds
// the chain's length, which would indicate a caller bug (peek-then-consume
// should never over-consume).
func (c *ByteChain) Consume(n int) {
	if n > len(c.buf) {
		panic("sshproto: Consume past end of ByteChain")
	}
	c.buf = c.buf[n:]
}

// IndexByte returns the index of the first occurrence of b within the
// unconsumed bytes, or -1 if not present.
func (c *ByteChain) IndexByte(b byte) int {
	return bytes.IndexByte(c.buf, b)
}
