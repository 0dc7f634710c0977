package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiefmaster/matrixctl/comm"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 5 * time.Second
)

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// device owns the serial connection for long running commands and reopens
// it whenever the link fails.
type device struct {
	cfg    comm.Config
	logger zerolog.Logger
	open   func(comm.Config) (*comm.Port, error)
}

func newDevice(cfg comm.Config, logger zerolog.Logger) *device {
	return &device{cfg: cfg, logger: logger, open: comm.Open}
}

// run delivers cmds to the device until ctx is done. A command being written
// when the link drops is lost; the next one goes to the reopened port.
// Messages read from the device are passed to onMessage.
func (d *device) run(ctx context.Context, cmds <-chan comm.Command, onMessage func(comm.Message)) error {
	delay := minBackoff
	for {
		port, err := d.open(d.cfg)
		if err != nil {
			d.logger.Warn().Err(err).Dur("retry", delay).Msg("could not open device")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = nextBackoff(delay)
			continue
		}
		delay = minBackoff
		d.logger.Info().Str("port", d.cfg.Name).Msg("device connected")

		err = d.serve(ctx, port, cmds, onMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Warn().Err(err).Msg("device link failed, reopening")
	}
}

func (d *device) serve(ctx context.Context, port *comm.Port, cmds <-chan comm.Command, onMessage func(comm.Message)) error {
	w := comm.Start(port, d.logger)
	defer w.Stop()
	for {
		select {
		case cmd := <-cmds:
			select {
			case w.Commands <- cmd:
			case err := <-w.Errors:
				return err
			case <-ctx.Done():
				return nil
			}
		case msg := <-w.Messages:
			if onMessage != nil {
				onMessage(msg)
			}
		case err := <-w.Errors:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
