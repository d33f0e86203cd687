// Package cipher holds the symmetric primitives shared with deployed stubs.
//
// The block cipher is AES in CFB mode with the IV carried in the first 16
// bytes of the message. No integrity check is performed: a corrupted message
// decrypts to garbage rather than failing, and stubs in the field rely on
// exactly this behavior. The XOR keystream is a cyclic repetition of the key
// and is its own inverse.
//
// Both primitives sit behind the Cipher interface so that a different scheme
// can be swapped in without touching the codec or the terminal layer.
package cipher
