package cli

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoft/miniwowbot/config"
	"github.com/jasoft/miniwowbot/ipc"
	"github.com/jasoft/miniwowbot/journal"
)

// scriptedHelper plays the on-device side: says hello, shows a claim
// button until it is tapped and answers every other probe with a miss.
type scriptedHelper struct {
	conn net.Conn

	mu      sync.Mutex
	claimed bool
	taps    chan ipc.TapCommand
}

func (h *scriptedHelper) run() {
	hello, _ := ipc.NewEnvelope(ipc.TypeHello, ipc.HelloMessage{Device: "emulator-5554", Width: 720, Height: 1280})
	hello.ID = "hello-1"
	if err := ipc.WriteEnvelope(h.conn, hello); err != nil {
		return
	}

	for {
		env, err := ipc.ReadEnvelope(h.conn)
		if err != nil {
			return
		}
		var reply ipc.Envelope
		switch env.Type {
		case ipc.TypeAck:
			continue
		case ipc.TypeProbe:
			var cmd ipc.ProbeCommand
			_ = env.Decode(&cmd)
			h.mu.Lock()
			res := ipc.ProbeResult{}
			if cmd.Template == "claim" && !h.claimed {
				res = ipc.ProbeResult{Found: true, X: 360, Y: 1000, Score: 0.97}
			}
			h.mu.Unlock()
			reply, _ = ipc.NewEnvelope(ipc.TypeProbeResult, res)
		case ipc.TypeTap:
			var cmd ipc.TapCommand
			_ = env.Decode(&cmd)
			h.mu.Lock()
			h.claimed = true
			h.mu.Unlock()
			h.taps <- cmd
			reply, _ = ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
		default:
			continue
		}
		reply.ReplyTo = env.ID
		if err := ipc.WriteEnvelope(h.conn, reply); err != nil {
			return
		}
	}
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Record(_ context.Context, e journal.Entry) error {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
	return nil
}

func (j *memJournal) has(kind journal.Kind, name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.Kind == kind && e.Name == name {
			return true
		}
	}
	return false
}

func TestServe_DrivesHelperUntilDisconnect(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg, err := config.Load("../config/testdata/bot.yaml")
	require.NoError(t, err)
	cfg.Loop.FastInterval = "10ms"
	cfg.Loop.RaceTimeout = "1s"

	rt, err := newRuntime(cfg)
	require.NoError(t, err)
	mem := &memJournal{}
	rt.journal = mem

	botSide, helperSide := net.Pipe()
	h := &scriptedHelper{conn: helperSide, taps: make(chan ipc.TapCommand, 4)}
	go h.run()

	done := make(chan struct{})
	go func() {
		rt.serve(context.Background(), botSide)
		close(done)
	}()

	select {
	case tap := <-h.taps:
		assert.Equal(t, ipc.TapCommand{X: 360, Y: 1000}, tap)
	case <-time.After(3 * time.Second):
		t.Fatal("bot never tapped the claim button")
	}

	helperSide.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end after the helper disconnected")
	}
	assert.True(t, mem.has(journal.KindRuleSwitch, "claim_reward"))
}

func TestServe_DropsSilentHelper(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg, err := config.Load("../config/testdata/bot.yaml")
	require.NoError(t, err)
	cfg.Device.HelloTimeout = "20ms"
	rt, err := newRuntime(cfg)
	require.NoError(t, err)

	botSide, helperSide := net.Pipe()
	defer helperSide.Close()

	done := make(chan struct{})
	go func() {
		rt.serve(context.Background(), botSide)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve kept a helper that never said hello")
	}
}
