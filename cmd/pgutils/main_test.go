package main

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackmaney/pg-utils/internal/config"
)

func parseCommon(t *testing.T, args []string) config.Overrides {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := registerCommonFlags(fs)
	require.NoError(t, fs.Parse(args))
	return common.overrides()
}

func TestCommonFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, o config.Overrides)
	}{
		{
			name: "no flags leaves overrides unset",
			args: []string{},
			check: func(t *testing.T, o config.Overrides) {
				assert.Nil(t, o.DatabaseURL)
				assert.Nil(t, o.Username)
				assert.Nil(t, o.QueryTimeout)
				assert.Nil(t, o.LogLevel)
				assert.False(t, o.OTelEnabled)
				assert.Empty(t, o.QueryLog)
			},
		},
		{
			name: "database url",
			args: []string{"-database-url", "postgres://localhost/test"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.DatabaseURL)
				assert.Equal(t, "postgres://localhost/test", *o.DatabaseURL)
			},
		},
		{
			name: "explicit empty string still counts as set",
			args: []string{"-schema", ""},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.Schema)
				assert.Empty(t, *o.Schema)
			},
		},
		{
			name: "credentials and profile",
			args: []string{"-username", "alice", "-profile", "prod", "-query-timeout", "5s"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.Username)
				assert.Equal(t, "alice", *o.Username)
				require.NotNil(t, o.Profile)
				assert.Equal(t, "prod", *o.Profile)
				require.NotNil(t, o.QueryTimeout)
				assert.Equal(t, 5*time.Second, *o.QueryTimeout)
			},
		},
		{
			name: "observability",
			args: []string{"-otel", "-query-log", "/tmp/q.ndjson"},
			check: func(t *testing.T, o config.Overrides) {
				assert.True(t, o.OTelEnabled)
				assert.Equal(t, "/tmp/q.ndjson", o.QueryLog)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseCommon(t, tt.args))
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestRun_NoCommand(t *testing.T) {
	err := run(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command given")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"a", "b"}, splitList("a,,b,"))
}

func TestParseFloats(t *testing.T) {
	ps, err := parseFloats("0.25, 0.5,0.75")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, ps)

	_, err = parseFloats("0.25,huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"huge" is not a number`)
}
