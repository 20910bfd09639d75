package core

import (
	"io"
	"sync/atomic"

	"timerfour/protocol"
)

// Error codes carried by the error response
const (
	ErrCodeUnknownCommand = 1
	ErrCodeBadArguments   = 2
	ErrCodeHandler        = 3
)

// CommandError is a failure reported by the firmware.
type CommandError struct {
	Code uint8
}

func (e *CommandError) Error() string {
	switch e.Code {
	case ErrCodeUnknownCommand:
		return "firmware: unknown command"
	case ErrCodeBadArguments:
		return "firmware: bad arguments"
	}
	return "firmware: command failed (code " + utoa(uint32(e.Code)) + ")"
}

// Status is the body of the timer4_status response.
type Status struct {
	Running     bool
	ClockSelect uint8
	Top         uint16
	Source      ClockSource
	Overflows   uint32
}

// AppendTo encodes the status response.
func (s Status) AppendTo(dst []byte) []byte {
	running := uint32(0)
	if s.Running {
		running = 1
	}
	dst = protocol.AppendVLQUint(dst, uint32(RespStatus))
	dst = protocol.AppendVLQUint(dst, running)
	dst = protocol.AppendVLQUint(dst, uint32(s.ClockSelect))
	dst = protocol.AppendVLQUint(dst, uint32(s.Top))
	dst = protocol.AppendVLQUint(dst, uint32(s.Source))
	return protocol.AppendVLQUint(dst, s.Overflows)
}

// DecodeResponse parses a response payload. An error response is returned
// as a *CommandError.
func DecodeResponse(payload []byte) (Status, error) {
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return Status{}, err
	}
	switch uint16(id) {
	case RespError:
		code, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return Status{}, err
		}
		return Status{}, &CommandError{Code: uint8(code)}
	case RespStatus:
	default:
		return Status{}, ErrUnknownCommand
	}
	var v [5]uint32
	for i := range v {
		if v[i], err = protocol.DecodeVLQUint(&payload); err != nil {
			return Status{}, err
		}
	}
	return Status{
		Running:     v[0] != 0,
		ClockSelect: uint8(v[1]),
		Top:         uint16(v[2]),
		Source:      ClockSource(v[3]),
		Overflows:   v[4],
	}, nil
}

// TimerCommands serves the Timer4 link messages for one timer. Every
// request is answered with a status or error response.
type TimerCommands struct {
	timer     *Timer4
	registry  *CommandRegistry
	overflows uint32 // atomic, bumped from the overflow interrupt
}

// NewTimerCommands registers the Timer4 command set for t.
func NewTimerCommands(t *Timer4) *TimerCommands {
	c := &TimerCommands{
		timer:    t,
		registry: NewCommandRegistry(),
	}
	r := c.registry
	r.RegisterByID(CmdGetStatus, func([]uint32) error { return nil })
	r.RegisterByID(CmdInitialize, func(a []uint32) error {
		t.Initialize(a[0])
		return nil
	})
	r.RegisterByID(CmdSetPeriod, func(a []uint32) error {
		t.SetPeriod(a[0])
		return nil
	})
	r.RegisterByID(CmdStart, func([]uint32) error {
		t.Start()
		return nil
	})
	r.RegisterByID(CmdStop, func([]uint32) error {
		t.Stop()
		return nil
	})
	r.RegisterByID(CmdRestart, func([]uint32) error {
		t.Restart()
		return nil
	})
	r.RegisterByID(CmdResume, func([]uint32) error {
		t.Resume()
		return nil
	})
	r.RegisterByID(CmdSetPwmDuty, func(a []uint32) error {
		if pin, ok := WirePin(a[0]); ok {
			t.SetPwmDuty(pin, clampDuty(a[1]))
		}
		return nil
	})
	r.RegisterByID(CmdEnablePwm, func(a []uint32) error {
		if pin, ok := WirePin(a[0]); ok {
			t.EnablePwmPeriod(pin, clampDuty(a[1]), a[2])
		}
		return nil
	})
	r.RegisterByID(CmdDisablePwm, func(a []uint32) error {
		if pin, ok := WirePin(a[0]); ok {
			t.DisablePwm(pin)
		}
		return nil
	})
	r.RegisterByID(CmdAttachInterrupt, func(a []uint32) error {
		atomic.StoreUint32(&c.overflows, 0)
		t.AttachInterruptPeriod(c.countOverflow, a[0])
		return nil
	})
	r.RegisterByID(CmdDetachInterrupt, func([]uint32) error {
		t.DetachInterrupt()
		return nil
	})
	return c
}

// WirePin converts a decoded pin argument. Values that do not fit a Pin
// name no channel and must not be truncated onto one.
func WirePin(v uint32) (Pin, bool) {
	if v > 0xFF {
		return 0, false
	}
	return Pin(v), true
}

func clampDuty(v uint32) uint16 {
	if v > DutyMax {
		return DutyMax
	}
	return uint16(v)
}

// Registry exposes the registry so targets can add their own commands.
func (c *TimerCommands) Registry() *CommandRegistry {
	return c.registry
}

// Timer returns the timer being served.
func (c *TimerCommands) Timer() *Timer4 {
	return c.timer
}

func (c *TimerCommands) countOverflow() {
	atomic.AddUint32(&c.overflows, 1)
}

// Overflows returns the number of overflow interrupts since the last
// attach_interrupt.
func (c *TimerCommands) Overflows() uint32 {
	return atomic.LoadUint32(&c.overflows)
}

// Status snapshots the timer state.
func (c *TimerCommands) Status() Status {
	return Status{
		Running:     c.timer.Running(),
		ClockSelect: c.timer.ClockSelect(),
		Top:         c.timer.Top(),
		Source:      c.timer.Source(),
		Overflows:   c.Overflows(),
	}
}

// HandlePayload runs every command in a request payload and returns the
// response payload. Processing stops at the first failing command.
func (c *TimerCommands) HandlePayload(payload []byte) []byte {
	data := payload
	for len(data) > 0 {
		id, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return errorPayload(ErrCodeBadArguments)
		}
		if err := c.registry.Dispatch(uint16(id), &data); err != nil {
			switch err {
			case ErrUnknownCommand:
				return errorPayload(ErrCodeUnknownCommand)
			case ErrBadArguments:
				return errorPayload(ErrCodeBadArguments)
			}
			DebugPrintln("timer4: command " + utoa(id) + " failed: " + err.Error())
			return errorPayload(ErrCodeHandler)
		}
	}
	return c.Status().AppendTo(nil)
}

func errorPayload(code uint8) []byte {
	return protocol.AppendVLQUint(protocol.AppendVLQUint(nil, uint32(RespError)), uint32(code))
}

// HandleFrame answers one request frame with a response frame carrying the
// same sequence number.
func (c *TimerCommands) HandleFrame(f protocol.Frame) ([]byte, error) {
	return protocol.EncodeFrame(f.Seq, c.HandlePayload(f.Payload))
}

// Serve reads request frames from r and writes responses to w until r
// fails. idle, when set, is called whenever a read returns no data.
func (c *TimerCommands) Serve(r io.Reader, w io.Writer, idle func()) error {
	dec := protocol.NewDecoder()
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				resp, ferr := c.HandleFrame(f)
				if ferr != nil {
					continue
				}
				if _, werr := w.Write(resp); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			return err
		}
		if n == 0 && idle != nil {
			idle()
		}
	}
}
