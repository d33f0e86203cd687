package cipher

// XORStream XORs data with key repeated cyclically. Applying it twice with
// the same key yields the original data. An empty key returns a copy.
func XORStream(data, key []byte) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// XOR adapts XORStream to the Cipher interface.
type XOR struct {
	key []byte
}

// NewXOR returns a keystream cipher over key.
func NewXOR(key []byte) *XOR {
	return &XOR{key: append([]byte(nil), key...)}
}

func (x *XOR) Encrypt(plain []byte) ([]byte, error) { return XORStream(plain, x.key), nil }
func (x *XOR) Decrypt(data []byte) ([]byte, error)  { return XORStream(data, x.key), nil }
