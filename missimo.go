// Package missimo runs the missimo robot add-on board: a rangefinder, two
// continuous rotation servos and two LED groups, driven from a host through
// one of several board backends.
package missimo

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/missimo/hal"
	"libdb.so/missimo/hal/periphhal"
	"libdb.so/missimo/hal/simhal"
	"libdb.so/missimo/pinserial"
)

// Session is a live connection to a board.
type Session struct {
	Robot *Robot
	Board hal.Board
}

// Sync pushes operations the board may have buffered and returns the board's
// fault, if any.
func (s *Session) Sync() error {
	if f, ok := s.Board.(interface{ Flush() }); ok {
		f.Flush()
	}
	if f, ok := s.Board.(hal.Faulter); ok {
		return f.Err()
	}
	return nil
}

// SessionFunc is called with a connected session. The robot is halted after it
// returns.
type SessionFunc func(ctx context.Context, s *Session) error

// Daemon is the main missimo daemon.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
}

// NewDaemon creates a new missimo daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run connects to the board and runs the control loop. It blocks until the
// given context is canceled or the board fails.
func (d *Daemon) Run(ctx context.Context) error {
	return d.Do(ctx, d.controlLoop)
}

// Do connects to the configured board and calls f with the session.
func (d *Daemon) Do(ctx context.Context, f SessionFunc) error {
	switch d.cfg.Backend {
	case SerialBackend:
		return d.doSerial(ctx, f)

	case PeriphBackend:
		b, err := periphhal.Open(d.logger)
		if err != nil {
			return err
		}
		return d.session(ctx, b, f)

	case SimBackend:
		b := simhal.New(0)
		b.Quiet = true
		if d.cfg.Sim.Distance > 0 {
			b.Echo = simhal.JitteredDistance(d.cfg.Sim.Distance, d.cfg.Sim.Jitter)
		}
		return d.session(ctx, b, f)

	default:
		return errors.Errorf("unknown backend %q", string(d.cfg.Backend))
	}
}

func (d *Daemon) session(ctx context.Context, b hal.Board, f SessionFunc) error {
	s := &Session{
		Robot: NewRobot(b, d.cfg.Sensor, d.cfg.Drive),
		Board: b,
	}

	err := f(ctx, s)

	d.logger.Debug("halting robot")
	s.Robot.Halt()
	if serr := s.Sync(); serr != nil && err == nil {
		err = errors.Wrap(serr, "failed to halt robot")
	}

	return err
}

func (d *Daemon) doSerial(ctx context.Context, f SessionFunc) error {
	port, err := serial.Open(d.cfg.Device, &serial.Mode{
		BaudRate: d.cfg.Baud,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open serial port")
	}
	defer port.Close()

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		return errors.Wrap(err, "failed to reset read timeout")
	}

	return d.runLink(ctx, port, f)
}

// runLink runs a session over a pinserial link. The link outlives ctx so that
// the robot can still be halted once ctx is canceled.
func (d *Daemon) runLink(ctx context.Context, port io.ReadWriteCloser, f SessionFunc) error {
	linkCtx, cancelLink := context.WithCancel(context.Background())
	defer cancelLink()

	errg, linkCtx := errgroup.WithContext(linkCtx)
	errg.Go(func() error {
		<-linkCtx.Done()
		d.logger.Debug("closing serial port")
		if err := port.Close(); err != nil {
			d.logger.Debug(
				"failed to close serial port",
				"error", err)
		}
		return nil
	})

	replies := make(chan pinserial.OutgoingPacket)
	errg.Go(func() error {
		return d.readPackets(linkCtx, port, replies)
	})

	errg.Go(func() error {
		defer cancelLink()

		remote := NewRemoteBoard(linkCtx, port, replies, time.Duration(d.cfg.ReplyTimeout), d.logger)

		d.logger.Debug("sending reset packet")
		if err := remote.Reset(); err != nil {
			return errors.Wrap(err, "failed to reset board")
		}

		return d.session(ctx, remote, f)
	})

	return errg.Wait()
}

func (d *Daemon) readPackets(ctx context.Context, r io.Reader, dst chan<- pinserial.OutgoingPacket) error {
	for ctx.Err() == nil {
		p, err := pinserial.ReadOutgoingPacket(r)
		if err != nil {
			if ctx.Err() != nil {
				// The port was closed under us.
				return nil
			}
			if errors.Is(err, pinserial.ErrChecksum) {
				d.logger.Warn("dropping corrupted packet from board")
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		d.logger.Debug(
			"received packet from board",
			"type", p.Type())

		switch p := p.(type) {
		case pinserial.LogPacket:
			d.logger.Info(
				"received log packet from board",
				"message", p.Message)
			continue

		case pinserial.PanicPacket:
			d.logger.Error("board unrecoverably panicked")
			return errors.New("board panicked")

		case pinserial.ErrorPacket:
			d.logger.Warn(
				"received error packet from board",
				"message", p.Message)
		}

		select {
		case <-ctx.Done():
			return nil
		case dst <- p:
			// ok
		}
	}

	return nil
}

func (d *Daemon) controlLoop(ctx context.Context, s *Session) error {
	ticker := time.NewTicker(time.Second / time.Duration(d.cfg.Rate))
	defer ticker.Stop()

	var obstacle bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res := s.Robot.Step()
		if err := s.Sync(); err != nil {
			return errors.Wrap(err, "board failed")
		}

		d.logger.Debug(
			"control step",
			"distance", res.Distance,
			"obstacle", res.Obstacle)

		if res.Obstacle != obstacle {
			d.logger.Info(
				"obstacle state changed",
				"obstacle", res.Obstacle,
				"distance", res.Distance)
			obstacle = res.Obstacle
		}
	}
}
