package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoft/miniwowbot/journal"
)

func TestJournalCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, journal.Entry{Kind: journal.KindRuleSwitch, Name: "claim_reward", Detail: "(idle) -> claim_reward", At: at}))
	require.NoError(t, j.Record(ctx, journal.Entry{Kind: journal.KindEscalation, Name: "staleness", Detail: "no progress for 10m0s", At: at.Add(time.Minute)}))
	require.NoError(t, j.Close())

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"journal", "--db", dbPath})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2024-03-01T12:01:00Z")
	assert.Contains(t, lines[0], "escalation")
	assert.Contains(t, lines[1], "(idle) -> claim_reward")

	buf.Reset()
	cmd = NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"journal", "--db", dbPath, "--kind", "action_fault"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "no entries\n", buf.String())
}

func TestJournalCommand_RequiresDB(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"journal"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
