package stubtest

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Shell is a tiny POSIX-flavoured interpreter covering what the terminal
// layer emits: cd, pwd, echo, export, printenv, env, whoami, uname, hostname,
// id, command -v, cat, mkdir, true and false, joined by newlines, ';' and '&&'.
type Shell struct {
	Kind      string
	Release   string
	Machine   string
	Hostname  string
	User      string
	Home      string
	Root      string
	Addresses string
	Env       map[string]string
	Files     map[string]string

	mu   sync.Mutex
	dirs map[string]bool
}

// NewShell returns a Linux web server shell rooted at /var/www.
func NewShell() *Shell {
	s := &Shell{
		Kind:      "Linux",
		Release:   "5.15.0-91-generic",
		Machine:   "x86_64",
		Hostname:  "web01",
		User:      "www-data",
		Home:      "/var/www",
		Root:      "/var/www",
		Addresses: "10.0.0.5 172.17.0.1",
		Env: map[string]string{
			"PATH":  "/usr/local/bin:/usr/bin:/bin",
			"HOME":  "/var/www",
			"SHELL": "/bin/sh",
		},
		Files: map[string]string{
			"/etc/os-release": "PRETTY_NAME=\"Ubuntu 22.04.3 LTS\"\nNAME=\"Ubuntu\"\nID=ubuntu\n",
			"/etc/hostname":   "web01\n",
		},
	}
	for _, dir := range []string{"/", "/bin", "/etc", "/home", "/tmp", "/usr", "/usr/bin", "/var", "/var/www", "/var/www/html", "/var/log"} {
		s.AddDir(dir)
	}
	return s
}

// AddDir creates dir and its parents.
func (s *Shell) AddDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirs == nil {
		s.dirs = make(map[string]bool)
	}
	for dir = path.Clean(dir); ; dir = path.Dir(dir) {
		s.dirs[dir] = true
		if dir == "/" {
			return
		}
	}
}

// HasDir reports whether dir exists.
func (s *Shell) HasDir(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean(dir)]
}

// Run executes script in a fresh process and returns its stdout.
func (s *Shell) Run(script string) []byte {
	p := &process{shell: s, cwd: s.Root, env: make(map[string]string, len(s.Env))}
	for k, v := range s.Env {
		p.env[k] = v
	}
	p.run(script)
	return p.out.Bytes()
}

type process struct {
	shell  *Shell
	cwd    string
	env    map[string]string
	out    bytes.Buffer
	status int
}

func (p *process) run(script string) {
	for _, line := range strings.Split(script, "\n") {
		for _, stmt := range splitTop(line, ";") {
			chain := splitTop(stmt, "&&")
			for i, cmd := range chain {
				if i > 0 && p.status != 0 {
					break
				}
				p.exec(cmd)
			}
		}
	}
}

func (p *process) subshell(script string) string {
	child := &process{shell: p.shell, cwd: p.cwd, env: make(map[string]string, len(p.env))}
	for k, v := range p.env {
		child.env[k] = v
	}
	child.run(script)
	return strings.TrimRight(child.out.String(), "\n")
}

func (p *process) exec(cmd string) {
	args := p.words(cmd)
	if len(args) == 0 {
		return
	}
	p.status = 0

	switch args[0] {
	case "cd":
		target := p.env["HOME"]
		if len(args) > 1 {
			target = args[1]
		}
		dir := p.resolve(target)
		if !p.shell.HasDir(dir) {
			p.status = 1
			return
		}
		p.cwd = dir
	case "pwd":
		p.println(p.cwd)
	case "echo":
		p.println(strings.Join(args[1:], " "))
	case "export":
		for _, assignment := range args[1:] {
			if k, v, ok := strings.Cut(assignment, "="); ok {
				p.env[k] = v
			}
		}
	case "printenv":
		if len(args) == 1 {
			p.printEnv()
			return
		}
		value, ok := p.env[args[1]]
		if !ok {
			p.status = 1
			return
		}
		p.println(value)
	case "env":
		p.printEnv()
	case "whoami":
		p.println(p.shell.User)
	case "id":
		p.println(fmt.Sprintf("uid=33(%[1]s) gid=33(%[1]s) groups=33(%[1]s)", p.shell.User))
	case "hostname":
		if len(args) > 1 && args[1] == "-I" {
			p.println(p.shell.Addresses + " ")
			return
		}
		p.println(p.shell.Hostname)
	case "uname":
		p.uname(args[1:])
	case "command":
		if len(args) == 3 && args[1] == "-v" {
			if args[2] == "sh" {
				p.println("/bin/sh")
			} else {
				p.println("/usr/bin/" + args[2])
			}
			return
		}
		p.status = 2
	case "cat":
		for _, name := range args[1:] {
			content, ok := p.shell.Files[p.resolve(name)]
			if !ok {
				p.status = 1
				continue
			}
			p.out.WriteString(content)
		}
	case "mkdir":
		for _, name := range args[1:] {
			if strings.HasPrefix(name, "-") {
				continue
			}
			p.shell.AddDir(p.resolve(name))
		}
	case "true":
	case "false":
		p.status = 1
	default:
		p.status = 127
	}
}

func (p *process) uname(flags []string) {
	if len(flags) == 0 {
		flags = []string{"-s"}
	}
	var parts []string
	for _, flag := range flags {
		switch flag {
		case "-s":
			parts = append(parts, p.shell.Kind)
		case "-r":
			parts = append(parts, p.shell.Release)
		case "-m":
			parts = append(parts, p.shell.Machine)
		case "-n":
			parts = append(parts, p.shell.Hostname)
		case "-a":
			parts = append(parts, p.shell.Kind, p.shell.Hostname, p.shell.Release, "#1 SMP", p.shell.Machine, "GNU/Linux")
		}
	}
	p.println(strings.Join(parts, " "))
}

func (p *process) printEnv() {
	keys := make([]string, 0, len(p.env))
	for k := range p.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.println(k + "=" + p.env[k])
	}
}

func (p *process) println(s string) {
	p.out.WriteString(s)
	p.out.WriteByte('\n')
}

func (p *process) resolve(name string) string {
	if name == "~" {
		return p.env["HOME"]
	}
	if !path.IsAbs(name) {
		name = path.Join(p.cwd, name)
	}
	return path.Clean(name)
}
