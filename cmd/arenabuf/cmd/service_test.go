package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/arenabuf/pkg/config"
)

// fakeCommands records commands instead of running them
func fakeCommands(t *testing.T, fail string) *[]string {
	t.Helper()
	var calls []string
	orig := runCommand
	runCommand = func(_ io.Writer, command string, args ...string) error {
		line := command + " " + strings.Join(args, " ")
		calls = append(calls, line)
		if fail != "" && strings.HasPrefix(line, fail) {
			return fmt.Errorf("%s failed", line)
		}
		return nil
	}
	t.Cleanup(func() { runCommand = orig })
	return &calls
}

func TestRenderSystemdUnit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/var/lib/arenabuf"
	cfg.SchemaPath = "/etc/arenabuf/schema.json"

	unit := renderSystemdUnit(cfg, "/etc/arenabuf/config.yaml", "svc", "/opt/arenabuf")
	assert.Contains(t, unit, "User=svc")
	assert.Contains(t, unit, "Group=svc")
	assert.Contains(t, unit, "ExecStart=/opt/arenabuf --config /etc/arenabuf/config.yaml serve")
	assert.Contains(t, unit, "ReadWritePaths=/var/lib/arenabuf")
	assert.Contains(t, unit, "ReadOnlyPaths=/etc/arenabuf\n")
	assert.Contains(t, unit, "ReadOnlyPaths=/etc/arenabuf/schema.json")
}

func TestServiceUnitCommand(t *testing.T) {
	_, configPath := setupWorkspace(t)
	out, err := run(t, "", "--config", configPath, "service", "unit", "--user", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "User=docs")
	assert.Contains(t, out, configPath)
}

func TestServiceInstall(t *testing.T) {
	_, configPath := setupWorkspace(t)
	unitDir := t.TempDir()
	calls := fakeCommands(t, "")

	out, err := run(t, "", "--config", configPath, "service", "install", "--unit-dir", unitDir, "--start=false")
	require.NoError(t, err)
	assert.Contains(t, out, "installed")
	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable arenabuf.service",
	}, *calls)

	content, err := os.ReadFile(filepath.Join(unitDir, serviceName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "--config "+configPath+" serve")

	*calls = nil
	_, err = run(t, "", "--config", configPath, "service", "uninstall", "--unit-dir", unitDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"systemctl stop arenabuf.service",
		"systemctl disable arenabuf.service",
		"systemctl daemon-reload",
	}, *calls)
	assert.NoFileExists(t, filepath.Join(unitDir, serviceName))
}

func TestServiceInstallBootstrapsConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	fakeCommands(t, "")

	_, err := run(t, "", "--config", configPath, "--data-dir", filepath.Join(dir, "data"),
		"service", "install", "--unit-dir", dir)
	require.NoError(t, err)
	assert.True(t, config.ConfigExists(configPath))
}

func TestServiceInstallFailure(t *testing.T) {
	_, configPath := setupWorkspace(t)
	fakeCommands(t, "systemctl enable")

	_, err := run(t, "", "--config", configPath, "service", "install", "--unit-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enable service")
}

func TestServiceSystemctlCommands(t *testing.T) {
	calls := fakeCommands(t, "")
	for _, action := range []string{"start", "stop", "restart", "status"} {
		_, err := run(t, "", "service", action)
		require.NoError(t, err)
	}
	_, err := run(t, "", "service", "logs", "-f", "-n", "50")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"systemctl start arenabuf.service",
		"systemctl stop arenabuf.service",
		"systemctl restart arenabuf.service",
		"systemctl status arenabuf.service",
		"journalctl -u arenabuf.service -f -n50",
	}, *calls)
}
