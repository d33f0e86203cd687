package terminal

import (
	"regexp"
	"sort"
	"strings"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect renders the scripts a session sends to one family of shells.
type Dialect interface {
	Name() string
	IsWindows() bool
	// Bootstrap prints key=value lines for kind, cwd, user, exec and host
	// between two sentinels.
	Bootstrap(sentinel string) string
	// Wrap runs command in cwd with env applied, then prints the trailer.
	Wrap(cwd string, env map[string]string, command, sentinel string) string
	// Frame runs query in cwd with env applied and prints its output
	// between two sentinels.
	Frame(cwd string, env map[string]string, query, sentinel string) string
	// GetVar prints the value of one variable, or nothing if unset.
	GetVar(name string) string
	// ListVars prints NAME=value lines.
	ListVars() string
	// Prompt is the default prompt template.
	Prompt() string
	// IsAbs reports whether a reported directory is usable as cwd.
	IsAbs(dir string) bool
}

// DialectFor returns the dialect registered under name. Unknown names fall
// back to POSIX.
func DialectFor(name string) Dialect {
	if strings.EqualFold(name, "windows") {
		return Windows{}
	}
	return Posix{}
}

// ValidEnvName reports whether name can be assigned in both dialects.
func ValidEnvName(name string) bool {
	return envNamePattern.MatchString(name)
}

func sortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Posix targets sh-compatible shells.
type Posix struct{}

func (Posix) Name() string    { return "posix" }
func (Posix) IsWindows() bool { return false }

func (Posix) Prompt() string { return "{user}@{host}:{cwd}$ " }

func (Posix) IsAbs(dir string) bool { return strings.HasPrefix(dir, "/") }

func (Posix) Bootstrap(sentinel string) string {
	return strings.Join([]string{
		"echo " + shellQuote(sentinel),
		`echo "kind=$(uname -s)"`,
		`echo "cwd=$(pwd)"`,
		`echo "user=$(whoami)"`,
		`echo "exec=$(command -v sh)"`,
		`echo "host=$(hostname)"`,
		"echo " + shellQuote(sentinel),
	}, "\n")
}

func (p Posix) Wrap(cwd string, env map[string]string, command, sentinel string) string {
	lines := p.prelude(cwd, env)
	lines = append(lines,
		command,
		"echo",
		"echo "+shellQuote(sentinel),
		"pwd",
		"echo "+shellQuote(sentinel),
	)
	return strings.Join(lines, "\n")
}

func (p Posix) Frame(cwd string, env map[string]string, query, sentinel string) string {
	lines := p.prelude(cwd, env)
	lines = append(lines,
		"echo "+shellQuote(sentinel),
		query,
		"echo "+shellQuote(sentinel),
	)
	return strings.Join(lines, "\n")
}

func (Posix) GetVar(name string) string { return "printenv " + shellQuote(name) }

func (Posix) ListVars() string { return "env" }

func (Posix) prelude(cwd string, env map[string]string) []string {
	lines := make([]string, 0, len(env)+1)
	if cwd != "" {
		lines = append(lines, "cd "+shellQuote(cwd)+" 2>/dev/null")
	}
	for _, k := range sortedKeys(env) {
		lines = append(lines, "export "+k+"="+shellQuote(env[k]))
	}
	return lines
}

// shellQuote single-quotes s for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Windows targets cmd.exe. Statements are chained with '&' on one line.
type Windows struct{}

func (Windows) Name() string    { return "windows" }
func (Windows) IsWindows() bool { return true }

func (Windows) Prompt() string { return "{cwd}>" }

func (Windows) IsAbs(dir string) bool {
	return len(dir) >= 3 && dir[1] == ':' && (dir[2] == '\\' || dir[2] == '/') || strings.HasPrefix(dir, `\\`)
}

func (Windows) Bootstrap(sentinel string) string {
	return strings.Join([]string{
		"echo " + sentinel,
		"echo kind=%OS%",
		"echo cwd=%CD%",
		`echo user=%USERDOMAIN%\%USERNAME%`,
		"echo exec=%COMSPEC%",
		"echo host=%COMPUTERNAME%",
		"echo " + sentinel,
	}, "&")
}

func (w Windows) Wrap(cwd string, env map[string]string, command, sentinel string) string {
	parts := w.prelude(cwd, env)
	parts = append(parts,
		command,
		"echo.",
		"echo "+sentinel,
		"cd",
		"echo "+sentinel,
	)
	return strings.Join(parts, "&")
}

func (w Windows) Frame(cwd string, env map[string]string, query, sentinel string) string {
	parts := w.prelude(cwd, env)
	parts = append(parts, "echo "+sentinel, query, "echo "+sentinel)
	return strings.Join(parts, "&")
}

func (Windows) GetVar(name string) string { return "echo %" + name + "%" }

func (Windows) ListVars() string { return "set" }

func (Windows) prelude(cwd string, env map[string]string) []string {
	parts := make([]string, 0, len(env)+1)
	if cwd != "" {
		parts = append(parts, `cd /d "`+cwd+`"`)
	}
	for _, k := range sortedKeys(env) {
		parts = append(parts, `set "`+k+"="+env[k]+`"`)
	}
	return parts
}
