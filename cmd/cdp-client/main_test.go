package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discoveryServer(t *testing.T) (string, int) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "P1", "type": "page", "title": "Example Domain", "url": "https://example.com/", "webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/page/P1"},
			{"id": "W1", "type": "service_worker", "title": "sw.js", "url": "https://example.com/sw.js"},
		})
	})
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Browser": "HeadlessChrome/120.0", "Protocol-Version": "1.3"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CDP_CLIENT_CONFIG", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, args, bytes.NewReader(nil), &out)
	return out.String(), err
}

func TestTargetsCommand(t *testing.T) {
	host, port := discoveryServer(t)

	out, err := runCLI(t, "--host", host, "--port", strconv.Itoa(port), "--log-level", "error", "targets")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Example Domain")
	assert.Contains(t, out, "service_worker")
}

func TestVersionCommand(t *testing.T) {
	host, port := discoveryServer(t)

	out, err := runCLI(t, "--host", host, "--port", strconv.Itoa(port), "--log-level", "error", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"Protocol-Version": "1.3"`)
}

func TestRunRejectsBadInvocations(t *testing.T) {
	_, err := runCLI(t)
	assert.EqualError(t, err, "missing command")

	_, err = runCLI(t, "--log-level", "error", "explode")
	assert.EqualError(t, err, `unknown command "explode"`)

	_, err = runCLI(t, "--log-level", "error", "send")
	assert.Error(t, err)

	_, err = runCLI(t, "--log-level", "error", "send", "Page.navigate", "{not json")
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = runCLI(t, "--bogus-flag")
	assert.Error(t, err)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: filehost\nport: 9333\ncommand_timeout: 10s\n"), 0o600))

	var flags globalFlags
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.StringVar(&flags.configPath, "config", "", "")
	flagSet.StringVar(&flags.host, "host", "", "")
	flagSet.IntVar(&flags.port, "port", 0, "")
	flagSet.BoolVar(&flags.suppressOrigin, "suppress-origin", false, "")
	flagSet.DurationVar(&flags.timeout, "timeout", 0, "")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "")
	require.NoError(t, flagSet.Parse([]string{"--config", path, "--port", "9444", "--suppress-origin"}))

	cfg, err := loadConfig(flagSet, &flags)
	require.NoError(t, err)
	assert.Equal(t, "filehost", cfg.Host)
	assert.Equal(t, 9444, cfg.Port)
	assert.True(t, cfg.SuppressOrigin)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
}
