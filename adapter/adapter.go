package adapter

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	emucore "github.com/user-none/eblitui/api"
	"github.com/user-none/ezx48/config"
	"github.com/user-none/ezx48/emu"
	"github.com/user-none/ezx48/romloader"
)

// Compile-time interface check.
var _ emucore.CoreFactory = (*Factory)(nil)

// Factory implements emucore.CoreFactory for the Spectrum emulator.
// The frontends hand it a snapshot; the system ROM comes from ROMPath,
// or from the "rom" entry of config.json when ROMPath is empty.
type Factory struct {
	ROMPath string
	Fs      afero.Fs // nil = OS filesystem
}

// SystemInfo returns system metadata for UI configuration.
func (f *Factory) SystemInfo() emucore.SystemInfo {
	return emucore.SystemInfo{
		Name:            "ezx48",
		ConsoleName:     "ZX Spectrum 48K",
		Extensions:      []string{".sna", ".z80"},
		ScreenWidth:     emu.ScreenWidth,
		MaxScreenHeight: emu.MaxScreenHeight,
		AspectRatio:     float64(emu.ScreenWidth) / float64(emu.MaxScreenHeight),
		SampleRate:      48000,
		Buttons: []emucore.Button{
			{Name: "Fire", ID: 4, DefaultKey: "J", DefaultPad: "A"},
			{Name: "Enter", ID: 5, DefaultKey: "Enter", DefaultPad: "Start"},
			{Name: "Space", ID: 7, DefaultKey: "Space", DefaultPad: "B"},
		},
		Players: 1,
		CoreOptions: []emucore.CoreOption{
			{
				Key:         "hide_border",
				Label:       "Hide Border",
				Description: "Show only the 256x192 display",
				Type:        emucore.CoreOptionBool,
				Default:     "false",
				Category:    emucore.CoreOptionCategoryVideo,
			},
			{
				Key:         "full_speed",
				Label:       "Full Speed",
				Description: "Run without throttling to 50 frames per second",
				Type:        emucore.CoreOptionBool,
				Default:     "true",
			},
		},
		RDBName:       "Sinclair - ZX Spectrum",
		ThumbnailRepo: "Sinclair_-_ZX_Spectrum",
		DataDirName:   "ezx48",
		CoreName:      emu.Name,
		CoreVersion:   emu.Version,
		SerializeSize: emu.SerializeSize(),
	}
}

// CreateEmulator creates a new emulator running the given snapshot. A
// 16KB image is taken to be a system ROM and boots to BASIC.
func (f *Factory) CreateEmulator(data []byte, region emucore.Region) (emucore.Emulator, error) {
	loader := romloader.New(f.fs())
	if len(data) == emu.ROMSize {
		e, err := emu.NewEmulator(data, emu.Options{Resolver: loader})
		if err != nil {
			return nil, err
		}
		e.SetRegion(region)
		return e, nil
	}

	rom, err := f.systemROM(loader)
	if err != nil {
		return nil, err
	}
	e, err := emu.NewEmulator(rom, emu.Options{Resolver: loader})
	if err != nil {
		return nil, err
	}
	if err := e.LoadSnapshot("snapshot", bytes.NewReader(data), len(data)); err != nil {
		return nil, err
	}
	e.SetRegion(region)
	return e, nil
}

// DetectRegion auto-detects the region from snapshot data.
// The bool return indicates whether the region was found.
func (f *Factory) DetectRegion(data []byte) (emucore.Region, bool) {
	return emu.DetectRegion(data)
}

func (f *Factory) fs() afero.Fs {
	if f.Fs == nil {
		return afero.NewOsFs()
	}
	return f.Fs
}

// systemROM loads the ROM named by ROMPath or the configuration. A
// relative configured path is taken from the configuration directory.
func (f *Factory) systemROM(loader *romloader.Loader) ([]byte, error) {
	path := f.ROMPath
	if path == "" {
		cfgPath, err := config.GetConfigPath()
		if err != nil {
			return nil, err
		}
		cfg, err := config.LoadConfig(f.fs(), cfgPath)
		if err != nil {
			return nil, err
		}
		path = cfg.ROM
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(cfgPath), path)
		}
	}

	rom, err := loader.LoadSystemROM(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load system ROM: %w", err)
	}
	return rom, nil
}
