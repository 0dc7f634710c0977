package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/thiefmaster/matrixctl/apis"
	"github.com/thiefmaster/matrixctl/bitmap"
	"github.com/thiefmaster/matrixctl/comm"
	"github.com/thiefmaster/matrixctl/render"
)

const infoTimeout = 3 * time.Second

func newLogger(verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "matrixctl").Logger()
}

// setup loads the config, applies the global flags and builds the image
// encoder the config describes.
func setup(c *cli.Context) (*appConfig, *bitmap.Encoder, zerolog.Logger, error) {
	logger := newLogger(c.Bool("verbose"))
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, nil, logger, cli.Exit(err, 1)
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	enc, err := cfg.encoder()
	if err != nil {
		return nil, nil, logger, cli.Exit(err, 1)
	}
	return cfg, enc, logger, nil
}

// exitStatus turns the result of a long running command into the error
// urfave/cli reports. An interrupt is a clean exit.
func exitStatus(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return cli.Exit(err, 1)
}

// sendOnce opens the port, writes cmds in order and closes it again.
func sendOnce(cfg *appConfig, logger zerolog.Logger, cmds ...comm.Command) error {
	port, err := comm.Open(cfg.serial())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer port.Close()
	for _, cmd := range cmds {
		logger.Debug().Stringer("opcode", cmd.Opcode).Msg("sending command")
		if err := comm.Send(port, cmd.Opcode, cmd.Args); err != nil {
			return cli.Exit(err, 1)
		}
	}
	return nil
}

// withBrightness prepends the configured brightness, if any.
func withBrightness(cfg *appConfig, cmds ...comm.Command) []comm.Command {
	if cfg.Brightness == nil {
		return cmds
	}
	return append([]comm.Command{comm.NewBrightnessCommand(*cfg.Brightness)}, cmds...)
}

func textAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}
	cfg, enc, logger, err := setup(c)
	if err != nil {
		return err
	}
	text := c.Args().First()

	if c.Bool("once") {
		cmd, err := newTextCommand(enc, text, cfg.textColor())
		if err != nil {
			return cli.Exit(err, 1)
		}
		return sendOnce(cfg, logger, withBrightness(cfg, cmd)...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmdChan := make(chan comm.Command, 1)
	for _, cmd := range withBrightness(cfg) {
		cmdChan <- cmd
	}
	typeErr := make(chan error, 1)
	go func() {
		if err := typewrite(ctx, enc, text, cfg.textColor(), cfg.Scroll.Interval, cmdChan); err != nil {
			typeErr <- err
			stop()
		}
	}()
	err = newDevice(cfg.serial(), logger).run(ctx, cmdChan, nil)
	select {
	case err := <-typeErr:
		return cli.Exit(err, 1)
	default:
		return exitStatus(err)
	}
}

func imageAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}
	cfg, enc, logger, err := setup(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()
	m, err := render.Decode(f)
	if err != nil {
		return cli.Exit(err, 1)
	}
	cmd, err := newPictureCommand(enc, m, c.Int("colors"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	return sendOnce(cfg, logger, withBrightness(cfg, cmd)...)
}

func brightnessAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}
	level, err := strconv.Atoi(c.Args().First())
	if err != nil || level < 0 || level > 100 {
		return cli.Exit("brightness must be a number between 0 and 100", 1)
	}
	cfg, _, logger, err := setup(c)
	if err != nil {
		return err
	}
	return sendOnce(cfg, logger, comm.NewBrightnessCommand(level))
}

func infoAction(c *cli.Context) error {
	cfg, _, logger, err := setup(c)
	if err != nil {
		return err
	}
	port, err := comm.Open(cfg.serial())
	if err != nil {
		return cli.Exit(err, 1)
	}
	w := comm.Start(port, logger)
	defer w.Stop()

	w.Commands <- comm.NewGetInfoCommand()
	select {
	case msg := <-w.Messages:
		fmt.Fprintln(c.App.Writer, msg)
		return nil
	case err := <-w.Errors:
		return cli.Exit(err, 1)
	case <-time.After(infoTimeout):
		return cli.Exit("no answer from device", 1)
	}
}

func serveAction(c *cli.Context) error {
	cfg, enc, logger, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	remote := apis.NewRemote(logger)
	go func() {
		err := remote.ListenAndServe(cfg.Listen)
		logger.Error().Err(err).Msg("remote control server exited")
		stop()
	}()
	sources := []<-chan apis.Request{remote.Requests()}
	if cfg.Feed.URL != "" {
		logger.Info().Str("url", cfg.Feed.URL).Msg("subscribing to feed")
		sources = append(sources, apis.SubscribeFeed(cfg.Feed, logger))
	}

	cmdChan := make(chan comm.Command, 8)
	for _, cmd := range withBrightness(cfg) {
		cmdChan <- cmd
	}
	go dispatchRequests(ctx, logger, enc, cfg.textColor(), cmdChan, sources...)

	return exitStatus(newDevice(cfg.serial(), logger).run(ctx, cmdChan, func(msg comm.Message) {
		remote.Notify(msg.Opcode.String(), msg.Args)
	}))
}

func main() {
	app := cli.NewApp()
	app.Name = "matrixctl"
	app.Usage = "drive a 32x32 LED matrix over a serial link"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"MATRIXCTL_CONFIG"},
			Usage:   "path to a yaml or toml config file",
		},
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			EnvVars: []string{"MATRIXCTL_PORT"},
			Usage:   "serial device, overrides the config file",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "log every frame",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "text",
			Usage:     "Type text onto the display, letter by letter",
			ArgsUsage: "TEXT",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "once", Usage: "show the whole text once and exit"},
			},
			Action: textAction,
		},
		{
			Name:      "image",
			Usage:     "Show a png, gif or jpeg image",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "colors", Value: imageColors, Usage: "reduce the image to this many colors first, 0 to disable"},
			},
			Action: imageAction,
		},
		{
			Name:      "brightness",
			Usage:     "Set the display brightness",
			ArgsUsage: "0-100",
			Action:    brightnessAction,
		},
		{
			Name:   "info",
			Usage:  "Ask the device for its info frame",
			Action: infoAction,
		},
		{
			Name:   "serve",
			Usage:  "Run the remote control daemon",
			Action: serveAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger := newLogger(false)
		logger.Fatal().Err(err).Msg("matrixctl failed")
	}
}
