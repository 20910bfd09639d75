package core

import (
	"errors"
	"strings"

	"timerfour/protocol"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArguments   = errors.New("bad command arguments")
)

// CommandHandler receives a command's decoded arguments in format order
type CommandHandler func(args []uint32) error

// CommandSpec describes one message on the link. IDs are fixed so the host
// and the firmware agree without a dictionary exchange.
type CommandSpec struct {
	ID     uint16
	Name   string
	Format string // e.g. "pin=%c duty=%hu"
}

// Params returns the parameter names of the format, in order.
func (s CommandSpec) Params() []string {
	fields := strings.Fields(s.Format)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if i := strings.IndexByte(f, '='); i > 0 {
			names = append(names, f[:i])
		}
	}
	return names
}

func (s CommandSpec) String() string {
	if s.Format == "" {
		return s.Name
	}
	return s.Name + " " + s.Format
}

// Timer4 link messages
const (
	CmdGetStatus uint16 = iota
	CmdInitialize
	CmdSetPeriod
	CmdStart
	CmdStop
	CmdRestart
	CmdResume
	CmdSetPwmDuty
	CmdEnablePwm
	CmdDisablePwm
	CmdAttachInterrupt
	CmdDetachInterrupt
	RespStatus
	RespError
	CmdSetServo // firmware only
	CmdSimTick  // host simulator only
)

// Commands is the message table shared by firmware and host.
var Commands = []CommandSpec{
	{CmdGetStatus, "get_status", ""},
	{CmdInitialize, "initialize", "period_us=%u"},
	{CmdSetPeriod, "set_period", "period_us=%u"},
	{CmdStart, "start", ""},
	{CmdStop, "stop", ""},
	{CmdRestart, "restart", ""},
	{CmdResume, "resume", ""},
	{CmdSetPwmDuty, "set_pwm_duty", "pin=%c duty=%hu"},
	{CmdEnablePwm, "enable_pwm", "pin=%c duty=%hu period_us=%u"},
	{CmdDisablePwm, "disable_pwm", "pin=%c"},
	{CmdAttachInterrupt, "attach_interrupt", "period_us=%u"},
	{CmdDetachInterrupt, "detach_interrupt", ""},
	{RespStatus, "timer4_status", "running=%c clock_select=%c top=%hu source=%c overflows=%u"},
	{RespError, "error", "code=%c"},
	{CmdSetServo, "set_servo", "pin=%c pulse_us=%hu"},
	{CmdSimTick, "sim_tick", "ticks=%u"},
}

// LookupCommand finds a message by name.
func LookupCommand(name string) (CommandSpec, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// CommandByID finds a message by ID.
func CommandByID(id uint16) (CommandSpec, bool) {
	if int(id) < len(Commands) && Commands[id].ID == id {
		return Commands[id], true
	}
	for _, c := range Commands {
		if c.ID == id {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// Command is a registered message with its handler
type Command struct {
	CommandSpec
	Handler CommandHandler
}

// CommandRegistry holds the commands a link endpoint accepts
type CommandRegistry struct {
	commands map[uint16]*Command
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
	}
}

// Register binds a handler to a message. Registering an ID again replaces
// the previous handler.
func (r *CommandRegistry) Register(spec CommandSpec, handler CommandHandler) {
	r.commands[spec.ID] = &Command{CommandSpec: spec, Handler: handler}
}

// RegisterByID binds a handler to one of the shared Commands by ID.
func (r *CommandRegistry) RegisterByID(id uint16, handler CommandHandler) {
	spec, ok := CommandByID(id)
	if !ok {
		return
	}
	r.Register(spec, handler)
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	return len(r.commands)
}

// Dispatch decodes the arguments of command id from data and calls its
// handler. data is advanced past the arguments.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.commands[id]
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	params := cmd.Params()
	args := make([]uint32, len(params))
	for i := range params {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return ErrBadArguments
		}
		args[i] = v
	}
	return cmd.Handler(args)
}

// Dictionary lists the registered commands, one per line, in ID order
func (r *CommandRegistry) Dictionary() string {
	var b strings.Builder
	for _, spec := range Commands {
		if _, ok := r.commands[spec.ID]; ok {
			b.WriteString(utoa(uint32(spec.ID)))
			b.WriteByte(' ')
			b.WriteString(spec.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// EncodeMessage builds a payload for a named message.
func EncodeMessage(dst []byte, name string, args ...uint32) ([]byte, error) {
	spec, ok := LookupCommand(name)
	if !ok {
		return dst, ErrUnknownCommand
	}
	if len(args) != len(spec.Params()) {
		return dst, ErrBadArguments
	}
	dst = protocol.AppendVLQUint(dst, uint32(spec.ID))
	for _, a := range args {
		dst = protocol.AppendVLQUint(dst, a)
	}
	return dst, nil
}
