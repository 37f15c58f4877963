package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerd.log")
	logger := Setup("ledgerd", "test", FileConfig{Path: path})
	logger.Info("claim settled", MaskField("authorization", "Bearer abc"), MaskField("project", "0xb0"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var line map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	require.Equal(t, "claim settled", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "ledgerd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["authorization"])
	require.Equal(t, "0xb0", line["project"])
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := RedactionAllowlist()
	require.Contains(t, keys, "currency")
	require.NotContains(t, keys, "authorization")
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}
