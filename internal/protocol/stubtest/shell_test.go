package stubtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellStartsFreshEachRun(t *testing.T) {
	sh := NewShell()

	assert.Equal(t, "/tmp\n", string(sh.Run("cd /tmp && pwd")))
	assert.Equal(t, "/var/www\n", string(sh.Run("pwd")))
}

func TestShellChains(t *testing.T) {
	sh := NewShell()

	assert.Equal(t, "", string(sh.Run("cd /missing && pwd")))
	assert.Equal(t, "/var/www\n", string(sh.Run("cd /missing; pwd")))
	assert.Equal(t, "a\nb\n", string(sh.Run("echo a\necho b")))
}

func TestShellExpansion(t *testing.T) {
	sh := NewShell()

	out := sh.Run(`export GREETING='hi there'` + "\n" + `echo "say: $GREETING from $(whoami)"`)
	assert.Equal(t, "say: hi there from www-data\n", string(out))

	assert.Equal(t, "kind=Linux\n", string(sh.Run(`echo "kind=$(uname -s)"`)))
	assert.Equal(t, "it's\n", string(sh.Run(`echo 'it'\''s'`)))
}

func TestShellFilesystemPersists(t *testing.T) {
	sh := NewShell()

	sh.Run("mkdir -p /tmp/work")
	assert.Equal(t, "/tmp/work\n", string(sh.Run("cd /tmp/work 2>/dev/null\npwd")))
}

func TestSplitTopRespectsQuotes(t *testing.T) {
	parts := splitTop(`echo 'a;b'; echo "$(echo c; echo d)"`, ";")
	assert.Equal(t, []string{`echo 'a;b'`, ` echo "$(echo c; echo d)"`}, parts)
}
