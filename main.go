//go:build !libretro

package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/afero"

	"github.com/user-none/ezx48/cli"
	"github.com/user-none/ezx48/config"
	"github.com/user-none/ezx48/emu"
	"github.com/user-none/ezx48/romloader"
)

func main() {
	configPath := flag.String("config", "", "path to config.json (default: user config directory)")
	romPath := flag.String("rom", "", "system ROM locator (overrides config)")
	snapshot := flag.String("snapshot", "", "snapshot locator: path, archive#member or URL")
	scale := flag.Int("scale", 0, "display scale 1-4 (overrides config)")
	border := flag.Int("border", -1, "border width in pixels 0-100 (overrides config)")
	refresh := flag.Int("refresh", 0, "paint every N frames (overrides config)")
	sleepHack := flag.Int("sleep", -1, "extra milliseconds per frame (overrides config)")
	throttle := flag.Bool("throttle", false, "limit to 50 frames per second")
	hideStats := flag.Bool("hide-stats", false, "hide the speed readout")
	flag.Parse()

	fs := afero.NewOsFs()

	path := *configPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := config.CreateConfigIfMissing(fs, path); err != nil {
		log.Printf("failed to create config: %v", err)
	}
	cfg, err := config.LoadConfig(fs, path)
	if err != nil {
		log.Printf("using default config: %v", err)
		cfg = config.DefaultConfig()
	}

	// Flags override the file
	if *romPath != "" {
		cfg.ROM = *romPath
	}
	if *snapshot != "" {
		cfg.Snapshot = *snapshot
	}
	if *scale > 0 {
		cfg.Video.Scale = *scale
	}
	if *border >= 0 {
		cfg.Video.BorderWidth = *border
	}
	if *refresh > 0 {
		cfg.Emulation.RefreshRate = *refresh
	}
	if *sleepHack >= 0 {
		cfg.Emulation.SleepHack = *sleepHack
	}
	if *throttle {
		cfg.Emulation.FullSpeed = false
	}
	if *hideStats {
		cfg.UI.ShowStats = false
	}
	cfg.Clamp()

	loader := romloader.New(fs)

	romLocator := cfg.ROM
	if !filepath.IsAbs(romLocator) {
		if ok, _ := afero.Exists(fs, romLocator); !ok {
			romLocator = filepath.Join(filepath.Dir(path), romLocator)
		}
	}
	rom, err := loader.LoadSystemROM(romLocator)
	if err != nil {
		log.Fatalf("Failed to load system ROM: %v", err)
	}

	borderWidth := cfg.Video.BorderWidth
	if borderWidth == 0 {
		borderWidth = -1 // no border
	}

	status := cli.NewStatusLine()
	e, err := emu.NewEmulator(rom, emu.Options{
		Scale:    cfg.Video.Scale,
		Border:   borderWidth,
		Progress: status,
		Resolver: loader,
	})
	if err != nil {
		log.Fatalf("Failed to create emulator: %v", err)
	}

	e.Pacer().RefreshRate = cfg.Emulation.RefreshRate
	e.Pacer().ShowStats = cfg.UI.ShowStats
	ctl := e.Control()
	ctl.SetFullSpeed(cfg.Emulation.FullSpeed)
	ctl.SetSleepHack(cfg.Emulation.SleepHack)
	if cfg.Snapshot != "" {
		ctl.RequestLoad(cfg.Snapshot)
	}

	runner := cli.NewRunner(e, status, cfg.UI.ShowStats)

	ebiten.SetWindowSize(runner.WindowSize())
	ebiten.SetWindowTitle("eZX48")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(emu.SpectrumTiming.FPS)

	if err := runner.Run(); err != nil {
		log.Fatal(err)
	}
}
