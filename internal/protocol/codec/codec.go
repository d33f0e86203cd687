package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// MalformedResponseError means the reply did not speak the stub protocol.
// It is not a command failure; the shell should be re-probed later.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// DecodedResponse is a successfully decoded reply.
type DecodedResponse struct {
	Output []byte
	// Envelope is the reply body exactly as received.
	Envelope []byte
}

// Codec encodes commands and decodes replies for one Profile.
type Codec struct {
	profile  Profile
	request  []step
	response []step
	path     []interface{}
	keys     keyring
}

// New validates p and prepares its chains.
func New(p Profile) (*Codec, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}
	request, _ := parseChain(p.RequestChain)
	response, _ := parseChain(p.ResponseChain)
	xorKey, aesKey, _ := p.keys()

	var path []interface{}
	for _, part := range strings.Split(p.PayloadPath, ".") {
		path = append(path, part)
	}

	return &Codec{
		profile:  p,
		request:  request,
		response: response,
		path:     path,
		keys:     keyring{xor: xorKey, aes: aesKey},
	}, nil
}

// Profile returns the profile the codec was built from.
func (c *Codec) Profile() Profile {
	return c.profile
}

// EncodeRequest wraps command into a request body.
func (c *Codec) EncodeRequest(command string) ([]byte, error) {
	text := command
	if c.profile.CommandTemplate != "" {
		text = fmt.Sprintf(c.profile.CommandTemplate, command)
	}

	payload, err := forward(c.request, []byte(text), c.keys)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(c.profile.Preamble)+len(payload)+len(c.profile.Trailer))
	body = append(body, c.profile.Preamble...)
	body = append(body, payload...)
	body = append(body, c.profile.Trailer...)
	return body, nil
}

// DecodeResponse extracts the output carried by a disguised reply.
func (c *Codec) DecodeResponse(raw []byte) (*DecodedResponse, error) {
	node, err := sonic.Get(raw, c.path...)
	if err != nil {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("payload field %q not found in %s", c.profile.PayloadPath, describeForeign(raw)),
			Err:    err,
		}
	}
	field, err := node.StrictString()
	if err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("payload field %q is not a string", c.profile.PayloadPath), Err: err}
	}
	if !strings.HasPrefix(field, c.profile.PayloadPrefix) {
		return nil, &MalformedResponseError{Reason: "payload prefix mismatch"}
	}

	output, err := reverse(c.response, []byte(field[len(c.profile.PayloadPrefix):]), c.keys)
	if err != nil {
		return nil, err
	}
	return &DecodedResponse{Output: output, Envelope: raw}, nil
}

// DecodeRequest is the stub side of EncodeRequest. It lets tests and
// diagnostics replay captured traffic.
func (c *Codec) DecodeRequest(body []byte) (string, error) {
	head, tail := len(c.profile.Preamble), len(c.profile.Trailer)
	if len(body) < head+tail {
		return "", &MalformedResponseError{Reason: "request shorter than preamble and trailer"}
	}
	text, err := reverse(c.request, body[head:len(body)-tail], c.keys)
	if err != nil {
		return "", err
	}
	if c.profile.CommandTemplate != "" && c.profile.CommandTemplate != "%s" {
		prefix, suffix, _ := strings.Cut(c.profile.CommandTemplate, "%s")
		text = bytes.TrimSuffix(bytes.TrimPrefix(text, []byte(prefix)), []byte(suffix))
	}
	return string(text), nil
}

// EncodeResponse is the stub side of DecodeResponse.
func (c *Codec) EncodeResponse(output []byte) ([]byte, error) {
	payload, err := forward(c.response, output, c.keys)
	if err != nil {
		return nil, err
	}
	return []byte(strings.Replace(c.profile.ResponseTemplate, PayloadPlaceholder, c.profile.PayloadPrefix+string(payload), 1)), nil
}

// Kind tags the outcome of one exchange.
type Kind int

const (
	KindOutput Kind = iota
	KindMalformed
	KindTransportFailure
)

func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindMalformed:
		return "malformed"
	case KindTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Result is the closed set of exchange outcomes.
type Result struct {
	Kind     Kind
	Response *DecodedResponse
	Err      error
}

// Classify folds a transport outcome and a reply body into a Result.
// Crypto failures keep KindMalformed but carry the original CryptoError.
func (c *Codec) Classify(raw []byte, sendErr error) Result {
	if sendErr != nil {
		return Result{Kind: KindTransportFailure, Err: sendErr}
	}
	decoded, err := c.DecodeResponse(raw)
	if err != nil {
		return Result{Kind: KindMalformed, Err: err}
	}
	return Result{Kind: KindOutput, Response: decoded}
}

// Output returns the decoded bytes or the error behind the result.
func (r Result) Output() ([]byte, error) {
	if r.Kind == KindOutput {
		return r.Response.Output, nil
	}
	if r.Err == nil {
		return nil, errors.New("exchange produced no output")
	}
	return nil, r.Err
}
