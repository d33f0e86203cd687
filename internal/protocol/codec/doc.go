// Package codec translates between command text and the stub wire format.
//
// A request body is a fixed decorative preamble, the command run through the
// request chain (hex, hex, base64 by default), and a fixed decorative
// trailer. A reply is a JSON document mimicking an unrelated API; one string
// field carries the output run through the response chain (xor, base64 by
// default). Preamble, trailer, template and keys are deployment constants and
// come from a Profile, never from computation.
//
// DecodeResponse only ever reads the payload field. Every other byte of the
// envelope is decorative and is kept verbatim in DecodedResponse.Envelope.
package codec
