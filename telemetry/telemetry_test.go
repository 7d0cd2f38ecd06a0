package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, log.WarnLevel)

	l.Debug("should not appear")
	l.Warn("should appear", "key", "value")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear")
}

func TestSidecarWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.csv")

	s, err := NewSidecar(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteRow(0, 3, 120, 0))
	require.NoError(t, s.WriteRow(512, 2, 98, 1500))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, csvHeader)
	require.Contains(t, content, "0,3,120,0\n")
	require.Contains(t, content, "512,2,98,1500\n")
}
