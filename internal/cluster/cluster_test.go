package cluster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEndpointAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:20001", Endpoint{Host: "127.0.0.1", Port: 20001}.Addr())
	assert.Equal(t, "[::1]:80", Endpoint{Host: "::1", Port: 80}.Addr())
}

func TestParseEndpoints(t *testing.T) {
	t.Run("valid entries in file order", func(t *testing.T) {
		in := "10.0.0.1:20001\n10.0.0.2:20002\nlocalhost:9000\n"
		eps := parseEndpoints(strings.NewReader(in), zap.NewNop())
		require.Len(t, eps, 3)
		assert.Equal(t, Endpoint{"10.0.0.1", 20001}, eps[0])
		assert.Equal(t, Endpoint{"10.0.0.2", 20002}, eps[1])
		assert.Equal(t, Endpoint{"localhost", 9000}, eps[2])
	})

	t.Run("skips comments and blank lines silently", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		in := "# fleet for the big run\n\n10.0.0.1:20001\n\n# spare\n10.0.0.2:20002\n"
		eps := parseEndpoints(strings.NewReader(in), zap.New(core))
		assert.Len(t, eps, 2)
		assert.Zero(t, logs.Len(), "comments and blanks are not warnings")
	})

	t.Run("warns and skips malformed entries", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		in := strings.Join([]string{
			"10.0.0.1:20001",
			"no-colon-here",   // no port separator
			"10.0.0.3:0",      // port below range
			"10.0.0.4:70000",  // port above range
			"10.0.0.5:notnum", // non-numeric port
			"10.0.0.6:20006",
		}, "\n")
		eps := parseEndpoints(strings.NewReader(in), zap.New(core))
		require.Len(t, eps, 2)
		assert.Equal(t, Endpoint{"10.0.0.1", 20001}, eps[0])
		assert.Equal(t, Endpoint{"10.0.0.6", 20006}, eps[1])
		assert.Equal(t, 4, logs.Len(), "one warning per skipped entry")
	})

	t.Run("empty input yields no endpoints", func(t *testing.T) {
		eps := parseEndpoints(strings.NewReader(""), zap.NewNop())
		assert.Empty(t, eps)
	})
}

func TestLoadEndpoints(t *testing.T) {
	t.Run("reads from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "servers.txt")
		require.NoError(t, os.WriteFile(path, []byte("127.0.0.1:20001\n127.0.0.1:20002\n"), 0o600))

		eps, err := LoadEndpoints(path, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, eps, 2)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadEndpoints(filepath.Join(t.TempDir(), "absent.txt"), zap.NewNop())
		assert.Error(t, err)
	})
}
