package telnet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned by DemuxReader.SendAYT when the background read
// loop has exited before any response byte arrived.
var ErrClosed = errors.New("telnet: demux reader closed")

// DemuxReader runs a background goroutine that reads raw bytes from a
// net.Conn, feeds them through a Negotiator, and publishes the resulting
// data-stream bytes on a RingBuffer. This keeps option negotiation replies
// flowing on their own schedule, independent of how quickly the
// application consumes decoded data.
type DemuxReader struct {
	conn net.Conn
	neg  *Negotiator
	ring *RingBuffer
	spy  io.Writer
	log  *slog.Logger

	once    sync.Once
	done    chan struct{}
	readMu  sync.Mutex
	readErr error // set once by loop() before the EOFMarker Put that surfaces it
}

// DemuxOption configures a DemuxReader at construction.
type DemuxOption func(*DemuxReader)

// WithSpy mirrors every raw byte read from the connection to w, useful for
// protocol tracing in tests.
func WithSpy(w io.Writer) DemuxOption {
	return func(d *DemuxReader) { d.spy = w }
}

// WithRingCapacity overrides the default RingBuffer capacity.
func WithRingCapacity(n int) DemuxOption {
	return func(d *DemuxReader) { d.ring = NewRingBuffer(n) }
}

// WithDemuxLogger injects a structured logger; defaults to slog.Default().
func WithDemuxLogger(l *slog.Logger) DemuxOption {
	return func(d *DemuxReader) { d.log = l }
}

// NewDemuxReader starts a background goroutine that reads from conn through
// neg until conn is closed or the read loop errors.
func NewDemuxReader(conn net.Conn, neg *Negotiator, opts ...DemuxOption) *DemuxReader {
	d := &DemuxReader{
		conn: conn,
		neg:  neg,
		ring: NewRingBuffer(0),
		log:  slog.Default(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

func (d *DemuxReader) loop() {
	defer close(d.done)
	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			if d.spy != nil {
				d.spy.Write(buf[:n])
			}
			for _, b := range buf[:n] {
				if out, ok := d.neg.ProcessByte(b); ok {
					d.ring.Put(int(out))
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.log.Debug("telnet: demux read error", "error", err)
				d.readErr = err
			}
			d.ring.Put(EOFMarker)
			return
		}
	}
}

// Read implements io.Reader by draining decoded bytes off the ring buffer.
// Once the stream has ended and the buffer is empty it returns io.EOF, or
// the stored read error if the connection failed with anything but io.EOF.
func (d *DemuxReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	d.readMu.Lock()
	defer d.readMu.Unlock()

	v := d.ring.Get()
	if v == EOFMarker {
		if d.readErr != nil {
			return 0, d.readErr
		}
		return 0, io.EOF
	}
	p[0] = byte(v)
	n := 1
	for n < len(p) && d.ring.Available() > 0 {
		v = d.ring.Get()
		if v == EOFMarker {
			break
		}
		p[n] = byte(v)
		n++
	}
	return n, nil
}

// Available reports how many decoded bytes are currently buffered.
func (d *DemuxReader) Available() int {
	return d.ring.Available()
}

// SendAYT writes an Are-You-There command and waits up to timeout for any
// response byte to arrive (the peer's reply, if any, is delivered as
// ordinary data since AYT has no negotiated acknowledgment).
func (d *DemuxReader) SendAYT(ctx context.Context, timeout time.Duration) error {
	if _, err := d.conn.Write([]byte{cmdIAC, cmdAYT}); err != nil {
		return err
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for d.ring.Available() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return context.DeadlineExceeded
		case <-d.done:
			return ErrClosed
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

// Close marks the stream EOF and closes the underlying connection to
// unblock the background read loop; it does not wait for that goroutine
// to exit.
func (d *DemuxReader) Close() error {
	var err error
	d.once.Do(func() {
		d.ring.Close()
		err = d.conn.Close()
	})
	return err
}
