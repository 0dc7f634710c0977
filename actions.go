package main

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/thiefmaster/matrixctl/apis"
	"github.com/thiefmaster/matrixctl/bitmap"
	"github.com/thiefmaster/matrixctl/comm"
	"github.com/thiefmaster/matrixctl/render"
)

// imageColors is how many colors an arbitrary image is reduced to before
// the palette builder sees it.
const imageColors = bitmap.DefaultMaxColors

var errNothingToShow = errors.New("nothing to show")

func newTextCommand(enc *bitmap.Encoder, text string, fg bitmap.Color) (comm.Command, error) {
	r := render.DrawText(text, fg, bitmap.Color{})
	return comm.NewImageCommand(enc, r.Pix)
}

func newPictureCommand(enc *bitmap.Encoder, m image.Image, colors int) (comm.Command, error) {
	r := render.FromImage(m, render.Size, colors)
	return comm.NewImageCommand(enc, r.Pix)
}

// typewrite queues one frame per tick, revealing text and taking it back,
// until ctx is done.
func typewrite(ctx context.Context, enc *bitmap.Encoder, text string, fg bitmap.Color, interval time.Duration, cmdChan chan<- comm.Command) error {
	tw := render.NewTypewriter(text)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		cmd, err := newTextCommand(enc, tw.Next(), fg)
		if err != nil {
			return err
		}
		select {
		case cmdChan <- cmd:
		case <-ctx.Done():
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// commandsForRequest translates a remote or feed request. Brightness goes
// first so a new picture does not flash at the old level.
func commandsForRequest(enc *bitmap.Encoder, req apis.Request, fg bitmap.Color) ([]comm.Command, error) {
	var cmds []comm.Command
	if req.Brightness != nil {
		cmds = append(cmds, comm.NewBrightnessCommand(*req.Brightness))
	}
	switch {
	case req.Image != nil:
		cmd, err := newPictureCommand(enc, req.Image, imageColors)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	case req.Text != "":
		cmd, err := newTextCommand(enc, req.Text, fg)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if req.Info {
		cmds = append(cmds, comm.NewGetInfoCommand())
	}
	if len(cmds) == 0 {
		return nil, errNothingToShow
	}
	return cmds, nil
}

// dispatchRequests feeds every request from the remote and the optional feed
// into cmdChan until ctx is done.
func dispatchRequests(ctx context.Context, logger zerolog.Logger, enc *bitmap.Encoder, fg bitmap.Color, cmdChan chan<- comm.Command, sources ...<-chan apis.Request) {
	merged := make(chan apis.Request)
	for _, src := range sources {
		go func(src <-chan apis.Request) {
			for {
				select {
				case req := <-src:
					select {
					case merged <- req:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	for {
		select {
		case req := <-merged:
			logger.Info().Str("text", req.Text).Bool("image", req.Image != nil).Msg("display request")
			cmds, err := commandsForRequest(enc, req, fg)
			if err != nil {
				logger.Warn().Err(err).Msg("could not handle request")
				continue
			}
			for _, cmd := range cmds {
				select {
				case cmdChan <- cmd:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
