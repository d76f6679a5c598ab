package ipc

import "github.com/jasoft/miniwowbot/model"

// Command type constants, sent from the bot to the helper.
const (
	TypeProbe       = "probe"
	TypeProbeResult = "probe_result"
	TypeTap         = "tap"
)

// ProbeCommand asks the helper to look for an image template or OCR text.
type ProbeCommand struct {
	Template  string        `json:"template"`
	Image     string        `json:"image,omitempty"`
	Text      string        `json:"text,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	Region    *model.Region `json:"region,omitempty"`
}

// ProbeResult is the helper's answer to a ProbeCommand.
type ProbeResult struct {
	Found bool    `json:"found"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Score float64 `json:"score,omitempty"`
}

type TapCommand struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func probeCommand(t model.Template) ProbeCommand {
	return ProbeCommand{
		Template:  t.Name,
		Image:     t.Image,
		Text:      t.Text,
		Threshold: t.Threshold,
		Region:    t.Region,
	}
}
