package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jasoft/miniwowbot/agent"
	"github.com/jasoft/miniwowbot/clock"
	"github.com/jasoft/miniwowbot/config"
	"github.com/jasoft/miniwowbot/ipc"
	"github.com/jasoft/miniwowbot/model"
	"github.com/jasoft/miniwowbot/notify"
	"github.com/jasoft/miniwowbot/rules"
)

// runtime is what every device session shares.
type runtime struct {
	cfg       config.Config
	templates model.Templates
	journal   agent.Recorder
	notifier  notify.Notifier
	clock     clock.Clock
}

func newRuntime(cfg config.Config) (*runtime, error) {
	ts, err := cfg.BuildTemplates()
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:       cfg,
		templates: ts,
		notifier:  notify.Log{},
		clock:     clock.Real{},
	}, nil
}

// newAgent builds a fresh world, rule set and decision loop for one device.
// Rule state (log throttles, staleness debug timer) is per session.
func (rt *runtime) newAgent(caps model.Capabilities, logger *slog.Logger) (*agent.Agent, error) {
	cfg := rt.cfg
	caps.Templates = rt.templates
	world := model.NewWorldState(caps, rt.clock.Now())

	stale := &rules.Staleness{
		Threshold:     config.Duration(cfg.Staleness.Threshold),
		BusySignal:    cfg.Staleness.BusySignal,
		DebugInterval: config.Duration(cfg.Staleness.DebugInterval),
		Notifier:      rt.notifier,
		Clock:         rt.clock,
		Logger:        logger,
	}
	if len(cfg.Staleness.Recover) > 0 {
		stale.Recover = rules.RaceTap(config.Duration(cfg.Loop.RaceTimeout), cfg.Staleness.Recover...)
	}

	rs, err := rules.Compile(cfg.Rules, rules.Deps{
		Clock:       rt.clock,
		Templates:   rt.templates,
		Staleness:   stale,
		RaceTimeout: config.Duration(cfg.Loop.RaceTimeout),
	})
	if err != nil {
		return nil, err
	}
	arb := rules.NewArbiter(rs,
		rules.WithClock(rt.clock),
		rules.WithLogger(logger),
		rules.WithLogIntervals(config.Duration(cfg.Arbiter.HitLogInterval), config.Duration(cfg.Arbiter.MissLogInterval)),
	)

	opts := []agent.Option{
		agent.WithClock(rt.clock),
		agent.WithLogger(logger),
		agent.WithIntervals(config.Duration(cfg.Loop.FastInterval), config.Duration(cfg.Loop.SlowInterval)),
		agent.WithBusySignal(cfg.Loop.BusySignal),
		agent.WithRaceTimeout(config.Duration(cfg.Loop.RaceTimeout)),
		agent.WithActionTimeout(config.Duration(cfg.Loop.ActionTimeout)),
	}
	if rt.journal != nil {
		opts = append(opts, agent.WithJournal(rt.journal))
	}
	a := agent.New(world, arb, cfg.Groups, opts...)
	stale.OnEscalate = a.RecordEscalation
	return a, nil
}

// serve runs one helper connection: wait for hello, then drive the device
// until the connection drops or ctx is cancelled.
func (rt *runtime) serve(ctx context.Context, conn net.Conn) {
	c := ipc.NewConnection(conn, nil)
	hello := make(chan ipc.HelloMessage, 1)
	c.RegisterHandler(ipc.TypeHello, func(env ipc.Envelope) (*ipc.Envelope, error) {
		var h ipc.HelloMessage
		if err := env.Decode(&h); err != nil {
			return nil, fmt.Errorf("decode hello: %w", err)
		}
		c.Device = h.Device
		select {
		case hello <- h:
		default:
		}
		ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
		if err != nil {
			return nil, err
		}
		return &ack, nil
	})
	go c.ReadLoop()
	defer c.Close()

	timeout := config.Duration(rt.cfg.Device.HelloTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var h ipc.HelloMessage
	select {
	case h = <-hello:
	case <-c.Done():
		slog.Warn("helper left before hello")
		return
	case <-time.After(timeout):
		slog.Warn("no hello from helper, dropping connection", "timeout", timeout)
		return
	case <-ctx.Done():
		return
	}

	logger := slog.Default().With("device", h.Device)
	logger.Info("device identified", "width", h.Width, "height", h.Height)
	if s := rt.cfg.Screen; h.Width != s.Width || h.Height != s.Height {
		logger.Warn("screen size differs from config, grid regions may be off",
			"device", fmt.Sprintf("%dx%d", h.Width, h.Height),
			"config", fmt.Sprintf("%dx%d", s.Width, s.Height),
		)
	}

	dev := ipc.NewDevice(c)
	a, err := rt.newAgent(model.Capabilities{Prober: dev, Actuator: dev}, logger)
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		return
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.Done():
			cancel()
		case <-sessionCtx.Done():
		}
	}()

	if err := a.Run(sessionCtx); err != nil && err != context.Canceled {
		logger.Error("decision loop ended", "error", err)
	}
	logger.Info("session ended")
}
