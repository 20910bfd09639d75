package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-tty"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"timerfour/core"
	"timerfour/host/link"
	"timerfour/host/serial"
	"timerfour/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	timeout = flag.Duration("timeout", link.DefaultTimeout, "Response timeout")
	variant = flag.String("variant", "atmega32u4", "Chip variant: "+strings.Join(core.VariantNames(), ", "))
	sim     = flag.Bool("sim", false, "Use the in-process simulator instead of a serial device")
	verbose = flag.Bool("verbose", false, "Dump raw frames")

	fcpu = core.DefaultClock.CPU
	fpll = core.DefaultClock.PLL
)

var errUsage = errors.New("usage")

func init() {
	flag.Var(&fcpu, "fcpu", "CPU clock (F_CPU)")
	flag.Var(&fpll, "fpll", "PLL clock (F_PLL)")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	chip := core.LookupVariant(*variant)
	clock := core.ClockTopology{CPU: fcpu, PLL: fpll}

	// resolve works offline
	if args[0] == "resolve" {
		if err := resolve(os.Stdout, chip, clock, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	client, err := connect(chip, clock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if args[0] == "console" {
		err = console(client, chip, clock)
	} else {
		err = run(os.Stdout, client, chip, clock, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect(chip core.Variant, clock core.ClockTopology) (*link.Client, error) {
	var client *link.Client
	if *sim {
		client, _ = link.Loopback(chip, clock, *timeout)
	} else {
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		c, err := link.Dial(cfg, *timeout)
		if err != nil {
			return nil, err
		}
		client = c
	}
	if *verbose {
		client.SetDebug(func(s string) { fmt.Fprintln(os.Stderr, s) })
	}
	return client, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "timer4-host %s - Timer4 link tool\n\n", protocol.Version)
	fmt.Fprintf(os.Stderr, "usage: timer4-host [flags] <command> [args]\n\n")
	printHelp(os.Stderr)
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  status                    Show timer state")
	fmt.Fprintln(w, "  init [us]                 Initialize (default 1000000us)")
	fmt.Fprintln(w, "  period <us>               Set period")
	fmt.Fprintln(w, "  start | stop | restart | resume")
	fmt.Fprintln(w, "  duty <pin> <duty>         Set duty (0-1023 or NN%)")
	fmt.Fprintln(w, "  pwm <pin> <duty> [us]     Enable PWM on a pin")
	fmt.Fprintln(w, "  nopwm <pin>               Disable PWM on a pin")
	fmt.Fprintln(w, "  irq [us]                  Attach the overflow counter")
	fmt.Fprintln(w, "  noirq                     Detach the overflow counter")
	fmt.Fprintln(w, "  servo <pin> <us>          Drive a servo pulse (firmware only)")
	fmt.Fprintln(w, "  tick <n>                  Advance the simulated counter (-sim only)")
	fmt.Fprintln(w, "  resolve <us>              Show the prescaler/top for a period, offline")
	fmt.Fprintln(w, "  messages                  List link messages")
	fmt.Fprintln(w, "  console                   Interactive console")
	fmt.Fprintln(w, "pins: a, ac, b, bc, d, dc or an Arduino pin number")
}

// run executes one command line against the client.
func run(w io.Writer, client *link.Client, chip core.Variant, clock core.ClockTopology, args []string) error {
	var (
		st  core.Status
		err error
	)
	switch args[0] {
	case "status":
		st, err = client.Call("get_status")
	case "init":
		var us uint32
		if len(args) > 1 {
			if us, err = parseUint(args[1]); err != nil {
				return err
			}
		}
		st, err = client.Call("initialize", us)
	case "period":
		us, perr := argUint(args, 1)
		if perr != nil {
			return perr
		}
		st, err = client.Call("set_period", us)
	case "start", "stop", "restart", "resume":
		st, err = client.Call(args[0])
	case "duty":
		if len(args) < 3 {
			return fmt.Errorf("%w: duty <pin> <duty>", errUsage)
		}
		pin, duty, perr := pinAndDuty(chip, args[1], args[2])
		if perr != nil {
			return perr
		}
		st, err = client.Call("set_pwm_duty", pin, duty)
	case "pwm":
		if len(args) < 3 {
			return fmt.Errorf("%w: pwm <pin> <duty> [us]", errUsage)
		}
		pin, duty, perr := pinAndDuty(chip, args[1], args[2])
		if perr != nil {
			return perr
		}
		var us uint32
		if len(args) > 3 {
			if us, err = parseUint(args[3]); err != nil {
				return err
			}
		}
		st, err = client.Call("enable_pwm", pin, duty, us)
	case "nopwm":
		if len(args) < 2 {
			return fmt.Errorf("%w: nopwm <pin>", errUsage)
		}
		pin, perr := parsePin(chip, args[1])
		if perr != nil {
			return perr
		}
		st, err = client.Call("disable_pwm", pin)
	case "irq":
		var us uint32
		if len(args) > 1 {
			if us, err = parseUint(args[1]); err != nil {
				return err
			}
		}
		st, err = client.Call("attach_interrupt", us)
	case "noirq":
		st, err = client.Call("detach_interrupt")
	case "servo":
		if len(args) < 3 {
			return fmt.Errorf("%w: servo <pin> <us>", errUsage)
		}
		pin, perr := parsePin(chip, args[1])
		if perr != nil {
			return perr
		}
		us, perr := parseUint(args[2])
		if perr != nil {
			return perr
		}
		st, err = client.Call("set_servo", pin, us)
	case "tick":
		n, perr := argUint(args, 1)
		if perr != nil {
			return perr
		}
		st, err = client.Call("sim_tick", n)
	case "resolve":
		return resolve(w, chip, clock, args[1:])
	case "messages":
		for _, c := range core.Commands {
			fmt.Fprintf(w, "%3d %s\n", c.ID, c)
		}
		return nil
	case "help", "?":
		printHelp(w)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}
	printStatus(w, st)
	return nil
}

func printStatus(w io.Writer, st core.Status) {
	ratio := "stopped"
	if p, ok := core.PrescalerForCode(st.ClockSelect); ok {
		ratio = "/" + strconv.FormatUint(uint64(p.Ratio), 10)
	}
	fmt.Fprintf(w, "running=%v clock_select=%d (%s) top=%d source=%s overflows=%d\n",
		st.Running, st.ClockSelect, ratio, st.Top, st.Source, st.Overflows)
}

func resolve(w io.Writer, chip core.Variant, clock core.ClockTopology, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: resolve <us>", errUsage)
	}
	us, err := parseUint(args[0])
	if err != nil {
		return err
	}
	if chip.Resolution() == 0 {
		return fmt.Errorf("variant %q has no Timer4", chip.Name())
	}
	res := core.Resolve(clock, chip.Resolution(), us)
	fmt.Fprintf(w, "period:    %dus\n", res.PeriodUS)
	fmt.Fprintf(w, "source:    %s (%s)\n", res.Source, physic.Frequency(clock.TimerHz(res.Source))*physic.Hertz)
	fmt.Fprintf(w, "cycles:    %d\n", res.Cycles)
	fmt.Fprintf(w, "prescaler: /%d (CS4=0x%X)", res.Tier.Ratio, res.Tier.Code)
	if res.Tier.Saturating {
		fmt.Fprint(w, " saturated")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "top:       %d\n", res.Top)
	fmt.Fprintf(w, "realized:  %dus (step %dus)\n", res.RealizedUS(clock), res.TickUS(clock))
	return nil
}

func console(client *link.Client, chip core.Variant, clock core.ClockTopology) error {
	t, err := tty.Open()
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}
	defer t.Close()

	out := t.Output()
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	for {
		fmt.Fprint(out, "timer4> ")
		line, err := t.ReadString()
		if err != nil {
			return err
		}
		fields, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(out, "parse error: %v\n", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "console":
			continue
		}
		if err := run(out, client, chip, clock, fields); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func argUint(args []string, i int) (uint32, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: %s needs an argument", errUsage, args[0])
	}
	return parseUint(args[i])
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}

// parsePin accepts a pin role name or an Arduino pin number.
func parsePin(chip core.Variant, s string) (uint32, error) {
	roles := map[string]core.Pin{
		"a": core.PinA, "ac": core.PinAC,
		"b": core.PinB, "bc": core.PinBC,
		"d": core.PinD, "dc": core.PinDC,
	}
	if p, ok := roles[strings.ToLower(s)]; ok {
		return uint32(p), nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid pin %q", s)
	}
	if _, ok := chip.Binding(core.Pin(v)); !ok {
		fmt.Fprintf(os.Stderr, "warning: pin %d is not a Timer4 pin on %s, it will be ignored\n", v, chip.Name())
	}
	return uint32(v), nil
}

// parseDuty accepts a raw 0..1023 duty or a percentage.
func parseDuty(s string) (uint32, error) {
	if strings.HasSuffix(s, "%") {
		d, err := gpio.ParseDuty(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duty %q: %w", s, err)
		}
		if d < 0 || d > gpio.DutyMax {
			return 0, fmt.Errorf("duty %q out of range", s)
		}
		return uint32(int64(d) * core.DutyMax / int64(gpio.DutyMax)), nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid duty %q: %w", s, err)
	}
	if v > core.DutyMax {
		return 0, fmt.Errorf("duty %d out of range 0-%d", v, core.DutyMax)
	}
	return uint32(v), nil
}

func pinAndDuty(chip core.Variant, pinArg, dutyArg string) (uint32, uint32, error) {
	pin, err := parsePin(chip, pinArg)
	if err != nil {
		return 0, 0, err
	}
	duty, err := parseDuty(dutyArg)
	if err != nil {
		return 0, 0, err
	}
	return pin, duty, nil
}
