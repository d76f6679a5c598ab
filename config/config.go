// Package config loads the bot's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jasoft/miniwowbot/agent"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/rules"
)

// Config captures every tunable setting of the bot.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Device    DeviceConfig     `yaml:"device"`
	Screen    ScreenConfig     `yaml:"screen"`
	Loop      LoopConfig       `yaml:"loop"`
	Arbiter   ArbiterConfig    `yaml:"arbiter"`
	Staleness StalenessConfig  `yaml:"staleness"`
	Journal   JournalConfig    `yaml:"journal"`
	Notify    NotifyConfig     `yaml:"notify"`
	Templates []TemplateConfig `yaml:"templates"`
	Groups    []agent.Group    `yaml:"groups"`
	Rules     []rules.Spec     `yaml:"rules"`
}

type LogConfig struct {
	// debug | info | warn | error
	Level string `yaml:"level"`
	// text | json
	Format string `yaml:"format"`
	// Optional file; logs go to stderr when empty.
	File string `yaml:"file"`
}

// DeviceConfig is where the bot listens for the on-device helper.
type DeviceConfig struct {
	// unix | tcp
	Network string `yaml:"network"`
	Address string `yaml:"address"`
	// How long a new connection has to say hello (e.g. "10s").
	HelloTimeout string `yaml:"hello_timeout"`
}

// ScreenConfig describes the expected device screen and the coarse grid
// templates may use to name their search region.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Cols   int `yaml:"cols"`
	Rows   int `yaml:"rows"`
}

// Grid returns the screen as a model.ScreenGrid.
func (s ScreenConfig) Grid() model.ScreenGrid {
	return model.ScreenGrid{Width: s.Width, Height: s.Height, Cols: s.Cols, Rows: s.Rows}
}

type LoopConfig struct {
	// Period between ticks (e.g. "200ms").
	FastInterval string `yaml:"fast_interval"`
	// Cooldown between auxiliary scans of slow groups (e.g. "10s").
	SlowInterval string `yaml:"slow_interval"`
	// Signal that suspends slow groups while on.
	BusySignal string `yaml:"busy_signal"`
	// Upper bound for one race or scan, including races inside tap actions.
	RaceTimeout string `yaml:"race_timeout"`
	// Upper bound for one rule action.
	ActionTimeout string `yaml:"action_timeout"`
}

// ArbiterConfig sets the per-rule diagnostic throttle.
type ArbiterConfig struct {
	HitLogInterval  string `yaml:"hit_log_interval"`
	MissLogInterval string `yaml:"miss_log_interval"`
}

type StalenessConfig struct {
	// Escalate after this long without progress (e.g. "10m").
	Threshold string `yaml:"threshold"`
	// Minimum gap between "progress staleness" debug lines.
	DebugInterval string `yaml:"debug_interval"`
	// Signal that suppresses escalation while on.
	BusySignal string `yaml:"busy_signal"`
	// Templates raced and tapped to get back to a known screen.
	Recover []string `yaml:"recover"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type NotifyConfig struct {
	// Escalations are POSTed here when set; otherwise they are only logged.
	WebhookURL string `yaml:"webhook_url"`
	Timeout    string `yaml:"timeout"`
	QueueSize  int    `yaml:"queue_size"`
}

// TemplateConfig is a template as written in the config file. A template
// may restrict its search either to a pixel region or to a screen grid cell.
type TemplateConfig struct {
	Name      string        `yaml:"name"`
	Image     string        `yaml:"image"`
	Text      string        `yaml:"text"`
	Threshold float64       `yaml:"threshold"`
	Region    *model.Region `yaml:"region"`
	Cell      []int         `yaml:"cell"`
}

// DefaultConfig provides reasonable defaults for a single emulator.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Device: DeviceConfig{
			Network:      "unix",
			Address:      "/tmp/miniwowbot.sock",
			HelloTimeout: "10s",
		},
		Screen: ScreenConfig{
			Width:  720,
			Height: 1280,
			Cols:   3,
			Rows:   4,
		},
		Loop: LoopConfig{
			FastInterval:  "200ms",
			SlowInterval:  "10s",
			BusySignal:    "battle_active",
			RaceTimeout:   "5s",
			ActionTimeout: "30s",
		},
		Arbiter: ArbiterConfig{
			HitLogInterval:  "1s",
			MissLogInterval: "5s",
		},
		Staleness: StalenessConfig{
			Threshold:     "10m",
			DebugInterval: "30s",
			BusySignal:    "battle_active",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "miniwowbot.db",
		},
		Notify: NotifyConfig{
			Timeout:   "10s",
			QueueSize: 16,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every section and compiles the rule set once so that
// typos in conditions are reported before the bot connects to anything.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	switch c.Device.Network {
	case "unix", "tcp":
	default:
		return fmt.Errorf("device.network: unknown network %q", c.Device.Network)
	}
	if c.Device.Address == "" {
		return errors.New("device.address is required")
	}

	durations := []struct {
		field, value string
		optional     bool
	}{
		{"device.hello_timeout", c.Device.HelloTimeout, false},
		{"loop.fast_interval", c.Loop.FastInterval, false},
		{"loop.slow_interval", c.Loop.SlowInterval, false},
		{"loop.race_timeout", c.Loop.RaceTimeout, false},
		{"loop.action_timeout", c.Loop.ActionTimeout, false},
		{"arbiter.hit_log_interval", c.Arbiter.HitLogInterval, false},
		{"arbiter.miss_log_interval", c.Arbiter.MissLogInterval, false},
		{"staleness.threshold", c.Staleness.Threshold, false},
		{"staleness.debug_interval", c.Staleness.DebugInterval, true},
		{"notify.timeout", c.Notify.Timeout, true},
	}
	for _, d := range durations {
		if d.value == "" && d.optional {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", d.field, d.value)
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if c.Notify.QueueSize < 0 {
		return fmt.Errorf("notify.queue_size: must not be negative, got %d", c.Notify.QueueSize)
	}

	ts, err := c.BuildTemplates()
	if err != nil {
		return err
	}
	for _, g := range c.Groups {
		if err := g.Validate(ts); err != nil {
			return fmt.Errorf("groups: %w", err)
		}
	}
	for _, name := range c.Staleness.Recover {
		if _, ok := ts.Lookup(name); !ok {
			return fmt.Errorf("staleness.recover: unknown template %q", name)
		}
	}

	if len(c.Rules) == 0 {
		return errors.New("rules: at least one rule is required")
	}
	deps := rules.Deps{
		Templates: ts,
		Staleness: &rules.Staleness{Threshold: Duration(c.Staleness.Threshold)},
	}
	if _, err := rules.Compile(c.Rules, deps); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// BuildTemplates resolves the configured templates into a template store.
// Grid cells are turned into pixel regions using the screen section.
func (c Config) BuildTemplates() (model.Templates, error) {
	grid := c.Screen.Grid()
	ts := make(model.Templates, len(c.Templates))
	for i, tc := range c.Templates {
		if tc.Name == "" {
			return nil, fmt.Errorf("templates[%d]: name is required", i)
		}
		if _, dup := ts[tc.Name]; dup {
			return nil, fmt.Errorf("template %q: duplicate name", tc.Name)
		}
		if tc.Image == "" && tc.Text == "" {
			return nil, fmt.Errorf("template %q: image or text is required", tc.Name)
		}
		if tc.Threshold < 0 || tc.Threshold > 1 {
			return nil, fmt.Errorf("template %q: threshold must be within [0, 1], got %g", tc.Name, tc.Threshold)
		}

		t := model.Template{
			Name:      tc.Name,
			Image:     tc.Image,
			Text:      tc.Text,
			Threshold: tc.Threshold,
			Region:    tc.Region,
		}
		if tc.Cell != nil {
			if tc.Region != nil {
				return nil, fmt.Errorf("template %q: region and cell are mutually exclusive", tc.Name)
			}
			if len(tc.Cell) != 2 {
				return nil, fmt.Errorf("template %q: cell must be [col, row]", tc.Name)
			}
			r := grid.Cell(tc.Cell[0], tc.Cell[1])
			if r.W == 0 || r.H == 0 {
				return nil, fmt.Errorf("template %q: cell %v is outside the %dx%d grid", tc.Name, tc.Cell, grid.Cols, grid.Rows)
			}
			t.Region = &r
		}
		ts[t.Name] = t
	}
	return ts, nil
}

// Duration parses a validated duration string. Invalid or empty values
// yield zero, which callers treat as "use the default".
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
