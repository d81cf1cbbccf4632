package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceFile(t *testing.T) {
	p, unit, err := serviceFile("linux", "/home/u", "/usr/local/bin/rea", "/home/u/.rea/config.json")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.config/systemd/user/rea.service", p)
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/rea serve --config /home/u/.rea/config.json")

	p, plist, err := serviceFile("darwin", "/Users/u", "/opt/rea", "/Users/u/.rea/config.json")
	require.NoError(t, err)
	assert.Equal(t, "/Users/u/Library/LaunchAgents/dev.rea.serve.plist", p)
	assert.Contains(t, plist, "<string>/opt/rea</string>")
	assert.Contains(t, plist, "/Users/u/.rea/logs/serve.log")
	assert.NotContains(t, plist, "{{")

	_, _, err = serviceFile("plan9", "/", "", "")
	assert.Error(t, err)
}

func TestPrintServiceHelp(t *testing.T) {
	var buf bytes.Buffer
	printServiceHelp(&buf, "linux", "/x/rea.service")
	assert.Contains(t, buf.String(), "systemctl --user start rea")
}
