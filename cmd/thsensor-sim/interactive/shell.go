// Package interactive provides the interactive shell for thsensor-sim.
//
// Every command runs on the simulation goroutine through Runner.Do, so the
// device is never touched concurrently with its main loop.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/pm"
	"github.com/thsensor/thsensor-go/pkg/sim"
)

// Doer runs fn on the simulation goroutine. *sim.Runner implements it.
type Doer interface {
	Do(ctx context.Context, fn func(*sim.Simulator)) error
}

var _ Doer = (*sim.Runner)(nil)

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// Shell handles interactive mode for thsensor-sim.
type Shell struct {
	rl *readline.Instance
}

// New creates the shell and takes over the terminal.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sensor> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (sh *Shell) Stdout() io.Writer {
	return sh.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (sh *Shell) Stderr() io.Writer {
	return sh.rl.Stderr()
}

// Run starts the command loop. It cancels the simulation on quit or EOF.
func (sh *Shell) Run(ctx context.Context, cancel context.CancelFunc, d Doer) {
	defer sh.rl.Close()

	out := sh.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := sh.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if err := Execute(ctx, d, line, out); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(out, "Exiting...")
				cancel()
				return
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// Execute runs one command line against the simulation and writes the
// result to out.
func Execute(ctx context.Context, d Doer, line string, out io.Writer) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "status", "s":
		return d.Do(ctx, func(s *sim.Simulator) { printStatus(out, s) })
	case "inject":
		return cmdInject(ctx, d, args, out)
	case "steer", "rejoin":
		return cmdScript(ctx, d, cmd, args, out)
	case "ota":
		return cmdOTA(ctx, d, args, out)
	case "identify":
		return cmdIdentify(ctx, d, args, out)
	case "leave":
		var err error
		if doErr := d.Do(ctx, func(s *sim.Simulator) { err = s.Stack().Leave() }); doErr != nil {
			return doErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Leave requested")
		return nil
	case "pin":
		return cmdPin(ctx, d, args, out)
	case "battery":
		return cmdBattery(ctx, d, args, out)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func cmdInject(ctx context.Context, d Doer, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: inject <STATUS>")
	}
	status, ok := commissioning.ParseStatus(strings.ToUpper(args[0]))
	if !ok {
		return fmt.Errorf("unknown status: %s", args[0])
	}
	if err := d.Do(ctx, func(s *sim.Simulator) { s.Stack().Inject(status) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued %s\n", status)
	return nil
}

// cmdScript queues the outcomes of the next steer or rejoin requests.
func cmdScript(ctx context.Context, d Doer, kind string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s <STATUS>...", kind)
	}
	statuses := make([]commissioning.Status, 0, len(args))
	for _, a := range args {
		st, ok := commissioning.ParseStatus(strings.ToUpper(a))
		if !ok {
			return fmt.Errorf("unknown status: %s", a)
		}
		statuses = append(statuses, st)
	}
	err := d.Do(ctx, func(s *sim.Simulator) {
		if kind == "steer" {
			s.Stack().QueueSteerOutcomes(statuses...)
		} else {
			s.Stack().QueueRejoinOutcomes(statuses...)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Scripted %d %s outcome(s)\n", len(statuses), kind)
	return nil
}

func cmdOTA(ctx context.Context, d Doer, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: ota <start|complete|done> [fail]")
	}
	var evt commissioning.OTAEvent
	switch strings.ToLower(args[0]) {
	case "start":
		evt = commissioning.OTAStart
	case "complete":
		evt = commissioning.OTAComplete
	case "done":
		evt = commissioning.OTAImageDone
	default:
		return fmt.Errorf("unknown OTA event: %s", args[0])
	}
	success := len(args) == 1 || !strings.EqualFold(args[1], "fail")

	if err := d.Do(ctx, func(s *sim.Simulator) { s.Stack().InjectOTA(evt, success) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued OTA %s (success=%t)\n", evt, success)
	return nil
}

func cmdIdentify(ctx context.Context, d Doer, args []string, out io.Writer) error {
	seconds := uint64(10)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid identify time: %s", args[0])
		}
		seconds = v
	}
	if err := d.Do(ctx, func(s *sim.Simulator) { s.Stack().InjectIdentify(1, 0x0000, uint16(seconds)) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued identify for %ds\n", seconds)
	return nil
}

func cmdPin(ctx context.Context, d Doer, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: pin <n> <0|1>")
	}
	pin, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid pin: %s", args[0])
	}
	var level bool
	switch args[1] {
	case "0", "low":
	case "1", "high":
		level = true
	default:
		return fmt.Errorf("invalid level: %s", args[1])
	}

	var setErr error
	if err := d.Do(ctx, func(s *sim.Simulator) { setErr = s.SetPin(pm.PinID(pin), level) }); err != nil {
		return err
	}
	if setErr != nil {
		return setErr
	}
	fmt.Fprintf(out, "Pin %d -> %s\n", pin, args[1])
	return nil
}

func cmdBattery(ctx context.Context, d Doer, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: battery <mV>")
	}
	mv, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid voltage: %s", args[0])
	}
	if err := d.Do(ctx, func(s *sim.Simulator) { s.Battery().Set(uint16(mv)) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "Battery at %d mV\n", mv)
	return nil
}

func printStatus(out io.Writer, s *sim.Simulator) {
	dev := s.Device()
	ctrl := dev.Controller()
	cctx := ctrl.Context()
	stack := s.Stack()
	net := stack.NetworkState()

	fmt.Fprintln(out, "Simulation:")
	fmt.Fprintf(out, "  Virtual time: %s (asleep %s)\n", s.Now(), s.Platform().Asleep())
	fmt.Fprintf(out, "  Boots:        %d  (boot %s)\n", s.Boots(), dev.BootID())
	fmt.Fprintf(out, "  Halted:       %t\n", s.Platform().Halted())
	fmt.Fprintf(out, "  Battery:      %d mV\n", s.Battery().MilliVolts())

	fmt.Fprintln(out, "Commissioning:")
	fmt.Fprintf(out, "  State:        %s\n", ctrl.State())
	fmt.Fprintf(out, "  Attempts:     %d\n", cctx.RejoinAttempts)
	fmt.Fprintf(out, "  Steers:       %d  Rejoins: %d\n", stack.Steers, len(stack.Rejoins))
	fmt.Fprintf(out, "  Network:      PAN 0x%04X channel %d factory-new=%t\n", net.PanID, net.Channel, net.FactoryNew)
	fmt.Fprintf(out, "  Fallback:     active=%t\n", dev.Fallback().Active())

	fmt.Fprintln(out, "Power:")
	fmt.Fprintf(out, "  Frame counter: %d\n", stack.OutgoingFrameCounter())
	if next, ok := dev.Timers().NearestPending(); ok {
		fmt.Fprintf(out, "  Next timer:    %s\n", next.Remaining)
	} else {
		fmt.Fprintln(out, "  Next timer:    none")
	}
	fmt.Fprintf(out, "  Sleeps:        %d  Hibernations: %d\n", s.Platform().Sleeps(), dev.Hibernations())
	for _, p := range dev.WakePins() {
		fmt.Fprintf(out, "  Wake pin %d:    %s (level %t)\n", p.Pin, p.Level, s.Platform().ReadPin(p.Pin))
	}
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `
Commands:
  status, s                     Show device and simulation state
  inject <STATUS>               Deliver a commissioning status (e.g. PARENT_LOST)
  steer <STATUS>...             Script the outcomes of the next steer requests
  rejoin <STATUS>...            Script the outcomes of the next rejoin requests
  ota <start|complete|done> [fail]
                                Deliver an OTA progress event
  identify [seconds]            Deliver an identify request
  leave                         Leave the network
  pin <n> <0|1>                 Drive a GPIO pin
  battery <mV>                  Set the battery voltage
  help, ?                       Show this help
  quit, q                       Stop the simulation

`)
}
