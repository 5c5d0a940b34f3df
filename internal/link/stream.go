package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tarm/serial"
)

const maxFrameSize = 1 << 20

// streamConn sends one JSON frame per line over a byte stream.
type streamConn struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner

	writeMu sync.Mutex
	closed  sync.Once
}

// NewStreamConn frames JSON lines over rwc.
func NewStreamConn(rwc io.ReadWriteCloser) Conn {
	sc := bufio.NewScanner(rwc)
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)
	return &streamConn{rwc: rwc, scanner: sc}
}

// OpenSerial opens a serial port carrying JSON line frames.
func OpenSerial(port string, baud int) (Conn, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name: port,
		Baud: baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	return NewStreamConn(p), nil
}

// ReadFrame skips blank lines. The read itself cannot be interrupted by
// ctx; closing the connection unblocks it.
func (c *streamConn) ReadFrame(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				return Frame{}, err
			}
			return Frame{}, ErrClosed
		}
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return Frame{}, fmt.Errorf("decode frame: %w", err)
		}
		return f, nil
	}
}

func (c *streamConn) WriteFrame(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.rwc.Write(append(b, '\n'))
	return err
}

func (c *streamConn) Close() error {
	var err error
	c.closed.Do(func() { err = c.rwc.Close() })
	return err
}

// pipeConn is one end of an in-memory link.
type pipeConn struct {
	in   <-chan Frame
	out  chan<- Frame
	done chan struct{}
	peer *pipeConn
	once sync.Once
}

// Pipe returns the two ends of an in-memory link.
func Pipe() (Conn, Conn) {
	ab := make(chan Frame, 64)
	ba := make(chan Frame, 64)
	a := &pipeConn{in: ba, out: ab, done: make(chan struct{})}
	b := &pipeConn{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeConn) ReadFrame(ctx context.Context) (Frame, error) {
	// Frames already queued are delivered even after a close.
	select {
	case f := <-p.in:
		return f, nil
	default:
	}
	select {
	case f := <-p.in:
		return f, nil
	case <-p.done:
		return Frame{}, ErrClosed
	case <-p.peer.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (p *pipeConn) WriteFrame(f Frame) error {
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- f:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
