package telnet

import "sync"

// EOFMarker is pushed onto a RingBuffer to signal that no further bytes
// will arrive; Get returns it as -1.
const EOFMarker = -1

// defaultRingCapacity is the default RingBuffer size, carried over from
// the wait/notify int-array this queue replaces.
const defaultRingCapacity = 2049

// RingBuffer is a fixed-capacity single-producer/single-consumer queue of
// ints, used to decouple DemuxReader's background goroutine from whatever
// pace the application reads at. Values are plain bytes (0-255) except for
// EOFMarker, which signals end of stream once and then keeps being
// returned on subsequent reads. Put blocks while the buffer is full; Get
// blocks while it is empty; both provide wakeups on the other's progress.
type RingBuffer struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	buf      []int
	head     int
	size     int
	eof      bool
}

// NewRingBuffer returns a RingBuffer with the given capacity, or
// defaultRingCapacity if capacity <= 0.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	rb := &RingBuffer{buf: make([]int, capacity)}
	rb.notEmpty.L = &rb.mu
	rb.notFull.L = &rb.mu
	return rb
}

// Put appends v (a byte value or EOFMarker), blocking while the buffer is
// full. Put after EOFMarker has already been queued is a no-op.
func (rb *RingBuffer) Put(v int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.eof {
		return
	}
	for rb.size == len(rb.buf) && !rb.eof {
		rb.notFull.Wait()
	}
	if rb.eof {
		return
	}
	tail := (rb.head + rb.size) % len(rb.buf)
	rb.buf[tail] = v
	rb.size++
	if v == EOFMarker {
		rb.eof = true
	}
	rb.notEmpty.Signal()
}

// Get blocks until a value is available and returns it. Once EOFMarker has
// been read, every subsequent Get returns EOFMarker immediately.
func (rb *RingBuffer) Get() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.size == 0 {
		rb.notEmpty.Wait()
	}
	v := rb.buf[rb.head]
	if v != EOFMarker || rb.size > 1 {
		rb.head = (rb.head + 1) % len(rb.buf)
		rb.size--
		rb.notFull.Signal()
	}
	return v
}

// Available reports how many values are currently queued.
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Close forces the buffer into its EOF state immediately and wakes any
// blocked Put or Get without waiting for the producer to notice. Queued
// values are kept, except that on a full buffer the newest one is replaced
// by EOFMarker.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.eof {
		return
	}
	rb.eof = true
	if rb.size == len(rb.buf) {
		// No room to append EOFMarker: overwrite the newest slot, since a
		// full buffer already guarantees the consumer has data to drain
		// before it matters.
		tail := (rb.head + rb.size - 1) % len(rb.buf)
		rb.buf[tail] = EOFMarker
	} else {
		tail := (rb.head + rb.size) % len(rb.buf)
		rb.buf[tail] = EOFMarker
		rb.size++
	}
	rb.notEmpty.Broadcast()
	rb.notFull.Broadcast()
}
