package id

import (
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	assert.NotEqual(t, gen.Generate(), gen.Generate())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		require.True(t, strings.HasPrefix(id, prefix+"_"), id)

		parts := strings.Split(id, "_")
		require.Len(t, parts, 2)
		assert.True(t, IsValid(parts[1]))
	}
}

func TestTypedIDGeneration(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewSessionID().String(), "sess_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}

func TestSentinel(t *testing.T) {
	shellSafe := regexp.MustCompile(`^[A-Z0-9_]+$`)

	a := NewSentinel()
	b := NewSentinel()

	assert.NotEqual(t, a, b)
	assert.True(t, shellSafe.MatchString(a), a)
	assert.True(t, strings.HasPrefix(a, "__STUBTERM_"))
	assert.True(t, strings.HasSuffix(a, "__"))
}

func TestParseAndTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	s := NewGenerator().GenerateString()

	_, err := Parse(s)
	require.NoError(t, err)

	ts, err := Timestamp(s)
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("not-a-ulid")
	assert.Error(t, err)
	assert.False(t, IsValid("not-a-ulid"))
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const workers, perWorker = 8, 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s := gen.GenerateString()
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func BenchmarkSentinel(b *testing.B) {
	gen := NewGenerator()
	for i := 0; i < b.N; i++ {
		_ = gen.Sentinel()
	}
}
