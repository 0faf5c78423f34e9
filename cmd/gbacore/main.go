// Command gbacore is the CORE's reference host: it loads a ROM (and
// optionally a BIOS image) and either opens an ebiten window or runs a
// fixed number of frames headlessly for scripted testing.
package main

import (
	"errors"
	"os"

	"github.com/urfave/cli"

	"github.com/retrocore-emu/gbacore/internal/gba"
	"github.com/retrocore-emu/gbacore/internal/gbalog"
	"github.com/retrocore-emu/gbacore/internal/ppu"
	"github.com/retrocore-emu/gbacore/internal/ui"
)

func main() {
	log := gbalog.Default()
	defer log.Close()

	app := cli.NewApp()
	app.Name = "gbacore"
	app.Usage = "gbacore [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "Path to the ROM file"},
		cli.StringFlag{Name: "bios", Usage: "Path to the 16 KiB GBA BIOS image (optional)"},
		cli.IntFlag{Name: "scale", Usage: "Integer window scale factor", Value: 3},
		cli.BoolFlag{Name: "headless", Usage: "Run without opening a window"},
		cli.IntFlag{Name: "frames", Usage: "Frames to run in headless mode (required with --headless)", Value: 0},
		cli.BoolFlag{Name: "low-latency-audio", Usage: "Hard-cap host audio buffering for minimal latency"},
	}
	app.Action = func(c *cli.Context) error { return run(c, log) }

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(c *cli.Context, log *gbalog.Logger) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	romData, err := os.ReadFile(romPath)
	if err != nil {
		return gba.ErrFileOpenFailure
	}

	core := gba.New()
	if err := core.Init(); err != nil {
		return err
	}
	if biosPath := c.String("bios"); biosPath != "" {
		biosData, err := os.ReadFile(biosPath)
		if err != nil {
			return gba.ErrFileOpenFailure
		}
		if err := core.LoadBIOS(biosData); err != nil {
			return err
		}
	}
	if err := core.LoadROM(romData); err != nil {
		return err
	}
	core.Reset()

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames option with a positive value")
		}
		return runHeadless(core, frames, log)
	}

	cfg := ui.Config{
		Title:           "gbacore - " + romPath,
		Scale:           c.Int("scale"),
		AudioLowLatency: c.Bool("low-latency-audio"),
	}
	window := ui.NewApp(cfg, core)
	go core.Run()
	return window.Run()
}

func runHeadless(core *gba.Core, frames int, log *gbalog.Logger) error {
	log.Infof("running %d frames headlessly", frames)
	completed := 0
	core.SetFramebufferSink(func(f *ppu.Frame) {
		completed++
		if completed%60 == 0 {
			log.Infof("frame %d/%d", completed, frames)
		}
		if completed >= frames {
			core.Stop()
		}
	})
	core.Run()
	log.Infof("headless run complete: %d frames", completed)
	return nil
}
