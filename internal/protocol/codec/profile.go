package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// PayloadPlaceholder marks where the encoded payload sits in ResponseTemplate.
const PayloadPlaceholder = "{{payload}}"

// Profile captures the constants a deployed stub was built with.
type Profile struct {
	Name             string   `yaml:"name" json:"name"`
	Method           string   `yaml:"method" json:"method"`
	Headers          []string `yaml:"headers" json:"headers"`
	Preamble         string   `yaml:"preamble" json:"preamble"`
	Trailer          string   `yaml:"trailer" json:"trailer"`
	RequestChain     string   `yaml:"request_chain" json:"request_chain"`
	ResponseChain    string   `yaml:"response_chain" json:"response_chain"`
	PayloadPath      string   `yaml:"payload_path" json:"payload_path"`
	PayloadPrefix    string   `yaml:"payload_prefix" json:"payload_prefix"`
	ResponseTemplate string   `yaml:"response_template" json:"response_template"`
	XORKey           string   `yaml:"xor_key" json:"-"`
	AESKey           string   `yaml:"aes_key" json:"-"`
	CommandTemplate  string   `yaml:"command_template" json:"command_template"`
}

// DefaultProfile returns the constants of the reference stub: a 110 byte
// preamble, a 4 byte trailer, and the payload under data.global behind a
// fixed prefix.
func DefaultProfile() Profile {
	return Profile{
		Name:   "reference",
		Method: "POST",
		Headers: []string{
			"Content-Type:application/json;charset=UTF-8",
			"Accept:application/json, text/plain, */*",
		},
		Preamble:      `{"appId":"wx7c3ed56f7f792d84","sdkVersion":"3.8.1","platform":"h5","ts":"1716959024","nonce":"a91f03","body":"`,
		Trailer:       "\"}\r\n",
		RequestChain:  "hex->hex->base64",
		ResponseChain: "xor->base64",
		PayloadPath:   "data.global",
		PayloadPrefix: "e1JTQX0pZ",
		ResponseTemplate: `{"code":0,"data":{"suggestItems":[],"global":"{{payload}}","exData":{"api_flow01":"0","api_flow02":"0",` +
			`"api_flow03":"1","api_flow04":"0","api_flow05":"0","api_flow06":"0","api_flow07":"0","api_tag":"2","local_cityid":"-1"}}}`,
		XORKey:          "UXwoRqMyaRkUxjvKifu2rw==",
		AESKey:          "lY4XTVY+PNCMoFwxjHsWQi0jW0oNqfScVIUk/KE6a3M=",
		CommandTemplate: "%s",
	}
}

// Validate checks the profile for constants that can never match a stub.
func (p Profile) Validate() error {
	switch p.Method {
	case "GET", "POST", "PUT", "DELETE":
	default:
		return fmt.Errorf("invalid request method: %q", p.Method)
	}

	for _, header := range p.Headers {
		if _, _, ok := SplitHeader(header); !ok {
			return fmt.Errorf("invalid header %q: want name:value", header)
		}
	}

	reqSteps, err := parseChain(p.RequestChain)
	if err != nil {
		return fmt.Errorf("request chain: %w", err)
	}
	respSteps, err := parseChain(p.ResponseChain)
	if err != nil {
		return fmt.Errorf("response chain: %w", err)
	}

	if strings.TrimSpace(p.PayloadPath) == "" {
		return fmt.Errorf("payload path is required")
	}
	if !strings.Contains(p.ResponseTemplate, PayloadPlaceholder) {
		return fmt.Errorf("response template must contain %s", PayloadPlaceholder)
	}
	if p.CommandTemplate != "" && strings.Count(p.CommandTemplate, "%s") != 1 {
		return fmt.Errorf("command template must contain exactly one %%s")
	}

	xorKey, aesKey, err := p.keys()
	if err != nil {
		return err
	}
	steps := append(reqSteps, respSteps...)
	if hasStep(steps, stepXOR) && len(xorKey) == 0 {
		return fmt.Errorf("xor step requires xor_key")
	}
	if hasStep(steps, stepAES) {
		switch len(aesKey) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("aes key must be 16, 24 or 32 bytes, got %d", len(aesKey))
		}
	}
	return nil
}

// WithXORKey returns a copy using key (base64) as the obfuscation key.
func (p Profile) WithXORKey(key string) Profile {
	p.XORKey = key
	return p
}

// HeaderMap parses Headers into a map.
func (p Profile) HeaderMap() map[string]string {
	headers := make(map[string]string, len(p.Headers))
	for _, header := range p.Headers {
		if name, value, ok := SplitHeader(header); ok {
			headers[name] = value
		}
	}
	return headers
}

// SplitHeader splits "name:value" on the first colon.
func SplitHeader(header string) (string, string, bool) {
	name, value, ok := strings.Cut(header, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func (p Profile) keys() (xorKey, aesKey []byte, err error) {
	if p.XORKey != "" {
		if xorKey, err = base64.StdEncoding.DecodeString(p.XORKey); err != nil {
			return nil, nil, fmt.Errorf("xor_key is not valid base64: %w", err)
		}
	}
	if p.AESKey != "" {
		if aesKey, err = base64.StdEncoding.DecodeString(p.AESKey); err != nil {
			return nil, nil, fmt.Errorf("aes_key is not valid base64: %w", err)
		}
	}
	return xorKey, aesKey, nil
}
