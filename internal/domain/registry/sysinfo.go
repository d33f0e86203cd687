package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"go.uber.org/zap"
)

// probe is one entry of the InitShell battery. apply fills its section of
// the snapshot from the command output.
type probe struct {
	section string
	command string
	apply   func(info *types.SystemInfo, out string)
}

var posixProbes = []probe{
	{"hostname", "hostname", func(info *types.SystemInfo, out string) { info.Hostname = out }},
	{"os", "uname -s", func(info *types.SystemInfo, out string) { info.OS = out }},
	{"kernel", "uname -r", func(info *types.SystemInfo, out string) { info.Kernel = out }},
	{"arch", "uname -m", func(info *types.SystemInfo, out string) { info.Arch = out }},
	{"distro", "cat /etc/os-release", func(info *types.SystemInfo, out string) { info.Distro = osRelease(out) }},
	{"identity", "id", func(info *types.SystemInfo, out string) { info.Identity = out }},
	{"addresses", "hostname -I", func(info *types.SystemInfo, out string) { info.Addresses = strings.Fields(out) }},
}

var windowsProbes = []probe{
	{"hostname", "hostname", func(info *types.SystemInfo, out string) { info.Hostname = out }},
	{"os", "ver", func(info *types.SystemInfo, out string) { info.OS = out }},
	{"arch", "echo %PROCESSOR_ARCHITECTURE%", func(info *types.SystemInfo, out string) { info.Arch = out }},
	{"identity", "whoami /user", func(info *types.SystemInfo, out string) { info.Identity = out }},
	{"addresses", "ipconfig", func(info *types.SystemInfo, out string) { info.Addresses = ipconfigAddresses(out) }},
}

// InitShell gathers a system snapshot through id's terminal, opening one
// when none is live. A failing probe leaves its section empty and adds a
// warning; only a failure to open the terminal is an error.
func (m *Manager) InitShell(ctx context.Context, id uint) (*types.SystemInfo, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	e, err := m.terminal(id)
	if err != nil {
		if e, err = m.openTerminal(ctx, id); err != nil {
			return nil, err
		}
	}

	session := e.session
	state := session.Info()
	info := &types.SystemInfo{
		ShellID:  id,
		Hostname: state.Hostname,
		OS:       state.Kind,
		User:     state.CurrentUser,
		Env:      map[string]string{},
	}

	probes := posixProbes
	if state.IsWindows {
		probes = windowsProbes
	}

	answered := 0
	for _, p := range probes {
		out, err := session.Query(ctx, p.command)
		out = strings.TrimSpace(out)
		switch {
		case err != nil:
			info.Warnings = append(info.Warnings, fmt.Sprintf("%s: %v", p.section, err))
		case out == "":
			answered++
			info.Warnings = append(info.Warnings, p.section+": no output")
		default:
			answered++
			p.apply(info, out)
		}
	}

	if env, err := session.Environment(ctx); err != nil {
		info.Warnings = append(info.Warnings, fmt.Sprintf("env: %v", err))
	} else {
		answered++
		info.Env = env
	}

	info.TakenAt = time.Now()
	if answered > 0 {
		if err := m.store.SetStatus(ctx, id, types.StatusAlive, info.TakenAt); err != nil {
			m.logger.Warn("failed to record shell status", zap.Uint("shell_id", id), zap.Error(err))
		}
	}

	m.logger.Info("shell initialised",
		zap.Uint("shell_id", id),
		zap.String("hostname", info.Hostname),
		zap.Int("warnings", len(info.Warnings)))
	return info, nil
}

// osRelease extracts PRETTY_NAME, falling back to NAME.
func osRelease(content string) string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			fields[k] = strings.Trim(v, `"'`)
		}
	}
	if name := fields["PRETTY_NAME"]; name != "" {
		return name
	}
	return fields["NAME"]
}

// ipconfigAddresses collects the IPv4 addresses ipconfig prints.
func ipconfigAddresses(out string) []string {
	var addrs []string
	for _, line := range strings.Split(out, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok || !strings.Contains(label, "IPv4") {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "(Preferred)"))
		if value != "" {
			addrs = append(addrs, value)
		}
	}
	return addrs
}
