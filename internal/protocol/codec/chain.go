package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/cipher"
)

type step string

const (
	stepHex    step = "hex"
	stepBase64 step = "base64"
	stepXOR    step = "xor"
	stepAES    step = "aes"
)

func parseChain(chain string) ([]step, error) {
	if strings.TrimSpace(chain) == "" {
		return nil, fmt.Errorf("empty chain")
	}
	var steps []step
	for _, raw := range strings.Split(chain, "->") {
		s := step(strings.ToLower(strings.TrimSpace(raw)))
		switch s {
		case stepHex, stepBase64, stepXOR, stepAES:
			steps = append(steps, s)
		default:
			return nil, fmt.Errorf("unsupported step %q", raw)
		}
	}
	return steps, nil
}

func hasStep(steps []step, want step) bool {
	for _, s := range steps {
		if s == want {
			return true
		}
	}
	return false
}

type keyring struct {
	xor []byte
	aes []byte
}

// forward applies steps in order, as the producing side does.
func forward(steps []step, data []byte, keys keyring) ([]byte, error) {
	var err error
	for _, s := range steps {
		switch s {
		case stepHex:
			data = []byte(hex.EncodeToString(data))
		case stepBase64:
			data = []byte(base64.StdEncoding.EncodeToString(data))
		case stepXOR:
			data = cipher.XORStream(data, keys.xor)
		case stepAES:
			if data, err = cipher.EncryptBlock(data, keys.aes); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

// reverse undoes steps last to first, as the consuming side does.
func reverse(steps []step, data []byte, keys keyring) ([]byte, error) {
	var err error
	for i := len(steps) - 1; i >= 0; i-- {
		switch steps[i] {
		case stepHex:
			out := make([]byte, hex.DecodedLen(len(data)))
			if _, err = hex.Decode(out, data); err != nil {
				return nil, &MalformedResponseError{Reason: "payload is not valid hex", Err: err}
			}
			data = out
		case stepBase64:
			if data, err = base64.StdEncoding.DecodeString(string(data)); err != nil {
				return nil, &MalformedResponseError{Reason: "payload is not valid base64", Err: err}
			}
		case stepXOR:
			data = cipher.XORStream(data, keys.xor)
		case stepAES:
			if data, err = cipher.DecryptBlock(data, keys.aes); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}
