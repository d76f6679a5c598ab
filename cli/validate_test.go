package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasoft/miniwowbot/rules"
)

func TestValidate_Golden(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"validate", "--config", "../config/testdata/bot.yaml"})

	require.NoError(t, cmd.Execute())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "validate_bot", buf.Bytes())
}

func TestValidate_ReportsBadCondition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	body := `
rules:
  - name: broken
    when: Signal("claim" &&
    do: noop
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"validate", "--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "broken")
}

func TestDescribeRule(t *testing.T) {
	assert.Equal(t, "noop", describeRule(ruleSpec("", "", "")))
	assert.Equal(t, "race_tap a|b when Signal(\"x\")", describeRule(ruleSpecTargets("race_tap", `Signal("x")`, "a", "b")))
}

func ruleSpec(do, when, target string) rules.Spec {
	return rules.Spec{Name: "r", Do: do, When: when, Target: target}
}

func ruleSpecTargets(do, when string, targets ...string) rules.Spec {
	return rules.Spec{Name: "r", Do: do, When: when, Targets: targets}
}
