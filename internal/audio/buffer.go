package audio

import (
	"sync"
)

// RingBuffer is a thread-safe ring buffer for audio data.
// One slot is kept free to tell a full buffer from an empty one.
type RingBuffer struct {
	buffer []byte
	size   int
	read   int
	write  int
	mu     sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write writes data to the ring buffer
// Returns the number of bytes written (may be less than len(data) if buffer is full)
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if free := rb.free(); n > free {
		n = free
	}
	for written := 0; written < n; {
		end := rb.size
		if rb.read > rb.write {
			end = rb.read - 1
		} else if rb.read == 0 {
			end = rb.size - 1
		}
		c := copy(rb.buffer[rb.write:end], data[written:n])
		written += c
		rb.write = (rb.write + c) % rb.size
	}
	return n
}

// Read reads up to len(data) bytes from the ring buffer
// Returns the number of bytes read
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.readLocked(data)
}

// ReadFull reads exactly len(data) bytes, or nothing if fewer are buffered
func (rb *RingBuffer) ReadFull(data []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.available() < len(data) {
		return false
	}
	rb.readLocked(data)
	return true
}

func (rb *RingBuffer) readLocked(data []byte) int {
	n := len(data)
	if avail := rb.available(); n > avail {
		n = avail
	}
	for read := 0; read < n; {
		end := rb.size
		if rb.write > rb.read {
			end = rb.write
		}
		c := copy(data[read:n], rb.buffer[rb.read:end])
		read += c
		rb.read = (rb.read + c) % rb.size
	}
	return n
}

func (rb *RingBuffer) available() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

func (rb *RingBuffer) free() int {
	return rb.size - rb.available() - 1
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.available()
}

// Space returns the number of bytes available to write
func (rb *RingBuffer) Space() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.free()
}

// Clear clears the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.read == rb.write
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return (rb.write+1)%rb.size == rb.read
}
