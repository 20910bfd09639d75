package link

import (
	"net"
	"time"

	"timerfour/core"
)

// Simulator is the firmware side of a loopback link, running the real
// command dispatcher against a RegisterFile.
type Simulator struct {
	Regs     *core.RegisterFile
	Pins     *core.PinRecorder
	Timer    *core.Timer4
	Commands *core.TimerCommands

	done chan error
}

// Loopback starts an in-process firmware for the given chip and returns a
// client connected to it. The simulator also accepts sim_tick, which
// advances the counter by a number of prescaled ticks.
func Loopback(variant core.Variant, clock core.ClockTopology, timeout time.Duration) (*Client, *Simulator) {
	regs := core.NewRegisterFile()
	pins := &core.PinRecorder{}
	timer := core.NewTimer4(regs, pins, variant, clock)
	cmds := core.NewTimerCommands(timer)
	regs.OnOverflow = timer.HandleOverflow

	cmds.Registry().RegisterByID(core.CmdSimTick, func(a []uint32) error {
		regs.Advance(a[0])
		return nil
	})

	sim := &Simulator{
		Regs:     regs,
		Pins:     pins,
		Timer:    timer,
		Commands: cmds,
		done:     make(chan error, 1),
	}

	hostEnd, fwEnd := net.Pipe()
	go func() {
		err := cmds.Serve(fwEnd, fwEnd, nil)
		fwEnd.Close()
		sim.done <- err
	}()
	return New(hostEnd, timeout), sim
}

// Wait blocks until the simulated firmware loop exits after the client
// closes, returning the error that stopped it.
func (s *Simulator) Wait() error {
	return <-s.done
}
