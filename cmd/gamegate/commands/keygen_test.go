package commands

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygen(t *testing.T) {
	cmd := NewKeygenCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--aes-size", "32", "--hmac-size", "48"})
	require.NoError(t, cmd.Execute())

	m := regexp.MustCompile(`aes-key = "([0-9a-f]+)"\nhmac-key = "([0-9a-f]+)"\n`).FindStringSubmatch(out.String())
	require.Len(t, m, 3, out.String())
	assert.Len(t, m[1], 64)
	assert.Len(t, m[2], 96)
}

func TestKeygenRejectsSizes(t *testing.T) {
	for _, args := range [][]string{
		{"--aes-size", "20"},
		{"--aes-size", "16", "--hmac-size", "16"},
	} {
		cmd := NewKeygenCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), strings.Join(args, " "))
	}
}

func TestOpsToken(t *testing.T) {
	cmd := NewOpsTokenCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--secret", strings.Repeat("s", 32)})
	require.NoError(t, cmd.Execute())
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "."), 3)

	cmd = NewOpsTokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--secret", "short"})
	assert.Error(t, cmd.Execute())
}
