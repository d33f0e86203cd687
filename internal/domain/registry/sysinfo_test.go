package registry

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitShellSnapshot(t *testing.T) {
	srv := newStub(t)
	mgr, _ := setupTestManager(t)
	ctx := context.Background()
	id := addShell(t, mgr, srv)

	info, err := mgr.InitShell(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, info.ShellID)
	assert.Equal(t, "web01", info.Hostname)
	assert.Equal(t, "Linux", info.OS)
	assert.Equal(t, "5.15.0-91-generic", info.Kernel)
	assert.Equal(t, "x86_64", info.Arch)
	assert.Equal(t, "Ubuntu 22.04.3 LTS", info.Distro)
	assert.Equal(t, "www-data", info.User)
	assert.Contains(t, info.Identity, "uid=33(www-data)")
	assert.Equal(t, []string{"10.0.0.5", "172.17.0.1"}, info.Addresses)
	assert.Equal(t, "/var/www", info.Env["HOME"])
	assert.Empty(t, info.Warnings)
	assert.False(t, info.TakenAt.IsZero())

	assert.Len(t, mgr.ListTerminals(), 1, "the terminal is opened implicitly")
	shell, err := mgr.GetShell(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAlive, shell.Status)

	terminal, err := mgr.GetTerminalInfo(id)
	require.NoError(t, err)
	assert.Equal(t, 0, terminal.HistoryLen, "probes stay out of history")
}

func TestInitShellPartialSnapshot(t *testing.T) {
	srv := newStub(t)
	delete(srv.Shell.Files, "/etc/os-release")
	mgr, _ := setupTestManager(t)
	id := addShell(t, mgr, srv)

	info, err := mgr.InitShell(context.Background(), id)
	require.NoError(t, err)

	assert.Empty(t, info.Distro)
	assert.Equal(t, []string{"distro: no output"}, info.Warnings)
	assert.Equal(t, "web01", info.Hostname, "other sections are still filled")
}

func TestInitShellReusesTerminal(t *testing.T) {
	srv := newStub(t)
	mgr, _ := setupTestManager(t)
	ctx := context.Background()
	id := openTerminal(t, mgr, srv)
	before, err := mgr.GetTerminalInfo(id)
	require.NoError(t, err)

	_, err = mgr.InitShell(ctx, id)
	require.NoError(t, err)

	after, err := mgr.GetTerminalInfo(id)
	require.NoError(t, err)
	assert.Equal(t, before.SessionID, after.SessionID)
}

func TestOSRelease(t *testing.T) {
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)",
		osRelease("NAME=\"Debian GNU/Linux\"\nPRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\n"))
	assert.Equal(t, "Alpine Linux", osRelease("NAME='Alpine Linux'\nID=alpine\n"))
	assert.Empty(t, osRelease("garbage"))
}

func TestIPConfigAddresses(t *testing.T) {
	out := "Windows IP Configuration\r\n\r\n" +
		"Ethernet adapter Ethernet0:\r\n" +
		"   IPv4 Address. . . . . . . . . . . : 192.168.1.20(Preferred)\r\n" +
		"   Subnet Mask . . . . . . . . . . . : 255.255.255.0\r\n" +
		"   IPv4 Address. . . . . . . . . . . : 10.1.1.4\r\n"

	assert.Equal(t, []string{"192.168.1.20", "10.1.1.4"}, ipconfigAddresses(out))
	assert.Empty(t, ipconfigAddresses("no adapters"))
}
