package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jasoft/miniwowbot/model"
)

// Device adapts a helper connection to the probe and action capabilities.
type Device struct {
	conn *Connection
}

func NewDevice(conn *Connection) *Device {
	return &Device{conn: conn}
}

// Probe asks the helper whether t is on screen. A match reported outside
// the template's region is treated as a miss.
func (d *Device) Probe(ctx context.Context, t model.Template) (model.Position, error) {
	resp, err := d.conn.Call(ctx, TypeProbe, probeCommand(t))
	if err != nil {
		return model.Position{}, err
	}
	var res ProbeResult
	if err := resp.Decode(&res); err != nil {
		return model.Position{}, err
	}
	if !res.Found {
		return model.Position{}, nil
	}
	pos := model.At(res.X, res.Y)
	if t.Region != nil && !t.Region.Contains(pos) {
		slog.Debug("probe match outside region", "template", t.Name, "x", pos.X, "y", pos.Y)
		return model.Position{}, nil
	}
	return pos, nil
}

// Tap taps p and waits for the helper to acknowledge it.
func (d *Device) Tap(ctx context.Context, p model.Position) error {
	if !p.Found {
		return fmt.Errorf("tap: position not found")
	}
	_, err := d.conn.Call(ctx, TypeTap, TapCommand{X: p.X, Y: p.Y})
	return err
}

// Wait sleeps locally; the helper has nothing to do while the bot waits.
func (d *Device) Wait(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
