package config

// Config represents the application configuration stored in config.json
type Config struct {
	Version   int             `json:"version"`
	ROM       string          `json:"rom"`      // System ROM locator
	Snapshot  string          `json:"snapshot"` // Snapshot loaded at startup, "" = none
	Video     VideoConfig     `json:"video"`
	Emulation EmulationConfig `json:"emulation"`
	UI        UIConfig        `json:"ui"`
}

// VideoConfig contains video-related settings
type VideoConfig struct {
	BorderWidth int `json:"borderWidth"` // Pixels on each side of the display
	Scale       int `json:"scale"`       // Display pixels per Spectrum pixel
}

// EmulationConfig contains speed settings
type EmulationConfig struct {
	RefreshRate int  `json:"refreshRate"` // Paint every N frames
	SleepHack   int  `json:"sleepHack"`   // Extra milliseconds per frame
	FullSpeed   bool `json:"fullSpeed"`   // false = throttle to 50Hz
}

// UIConfig contains status bar settings
type UIConfig struct {
	ShowStats bool `json:"showStats"`
}

// Setting limits
const (
	currentVersion = 1

	DefaultROM = "spectrum.rom"

	MaxBorderWidth     = 100
	DefaultBorderWidth = 20
	MinScale           = 1
	MaxScale           = 4
	DefaultScale       = 2
	MinRefreshRate     = 1
	MaxRefreshRate     = 100
	MaxSleepHack       = 100
)

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Version: currentVersion,
		ROM:     DefaultROM,
		Video: VideoConfig{
			BorderWidth: DefaultBorderWidth,
			Scale:       DefaultScale,
		},
		Emulation: EmulationConfig{
			RefreshRate: MinRefreshRate,
			SleepHack:   0,
			FullSpeed:   true,
		},
		UI: UIConfig{
			ShowStats: true,
		},
	}
}

// Clamp forces every numeric setting into its valid range.
func (c *Config) Clamp() {
	c.Video.BorderWidth = clamp(c.Video.BorderWidth, 0, MaxBorderWidth)
	c.Video.Scale = clamp(c.Video.Scale, MinScale, MaxScale)
	c.Emulation.RefreshRate = clamp(c.Emulation.RefreshRate, MinRefreshRate, MaxRefreshRate)
	c.Emulation.SleepHack = clamp(c.Emulation.SleepHack, 0, MaxSleepHack)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
