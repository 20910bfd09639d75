// Package link is the host side of the Timer4 command link.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"timerfour/core"
	"timerfour/host/serial"
	"timerfour/protocol"
)

var (
	ErrTimeout = errors.New("link: response timeout")
	ErrClosed  = errors.New("link: closed")
)

// DefaultTimeout is how long Call waits for a response.
const DefaultTimeout = 500 * time.Millisecond

// Client sends commands to the firmware and waits for the matching status
// response. Calls are serialized; one reader goroutine drains the port.
type Client struct {
	port    io.ReadWriteCloser
	timeout time.Duration

	mu  sync.Mutex
	seq uint8

	frames    chan protocol.Frame
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	readErr   error

	debug func(string)
}

// New wraps an open port and starts reading from it.
func New(port io.ReadWriteCloser, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		port:    port,
		timeout: timeout,
		frames:  make(chan protocol.Frame, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		debug:   func(string) {},
	}
	go c.readLoop()
	return c
}

// Dial opens a serial port and returns a client on it.
func Dial(cfg *serial.Config, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, timeout), nil
}

// SetDebug installs a sink for raw frame dumps.
func (c *Client) SetDebug(w func(string)) {
	if w == nil {
		w = func(string) {}
	}
	c.mu.Lock()
	c.debug = w
	c.mu.Unlock()
}

// Call sends one named command and returns the firmware's status reply.
func (c *Client) Call(name string, args ...uint32) (core.Status, error) {
	payload, err := core.EncodeMessage(nil, name, args...)
	if err != nil {
		return core.Status{}, fmt.Errorf("encode %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = (c.seq + 1) & protocol.MessageSeqMask
	msg, err := protocol.EncodeFrame(c.seq, payload)
	if err != nil {
		return core.Status{}, fmt.Errorf("encode %s: %w", name, err)
	}
	c.discardQueued()
	c.debug(fmt.Sprintf("-> % x", msg))
	if _, err := c.port.Write(msg); err != nil {
		return core.Status{}, fmt.Errorf("write %s: %w", name, err)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				if c.readErr != nil {
					return core.Status{}, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
				}
				return core.Status{}, ErrClosed
			}
			// Sequence numbers wrap every 16 calls, so a reply that
			// arrives later than that still matches here.
			if f.Seq != c.seq {
				c.debug(fmt.Sprintf("stale response seq=%d, want %d", f.Seq, c.seq))
				continue
			}
			c.debug(fmt.Sprintf("<- % x", f.Payload))
			return core.DecodeResponse(f.Payload)
		case <-deadline.C:
			return core.Status{}, fmt.Errorf("%s: %w after %v", name, ErrTimeout, c.timeout)
		}
	}
}

// discardQueued drops responses that arrived after their Call gave up.
// Calls are serialized, so nothing queued before a write can answer it.
func (c *Client) discardQueued() {
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return
			}
			c.debug(fmt.Sprintf("discard late response seq=%d", f.Seq))
		default:
			return
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.frames)

	dec := protocol.NewDecoder()
	buf := make([]byte, 256)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				select {
				case c.frames <- f:
				case <-c.stop:
					return
				}
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			// tarm/serial reports a read timeout as EOF
			select {
			case <-c.stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
		default:
			select {
			case <-c.stop:
			default:
				c.readErr = err
			}
			return
		}
	}
}

// Close stops the reader and closes the port.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.port.Close()
		<-c.done
	})
	return err
}
