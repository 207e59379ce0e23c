package biometric

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// TemplateSize is the embedding dimensionality used for face templates.
const TemplateSize = 128

// Template is a stored biometric embedding. It is opaque to the rest of the
// backend: only this package encodes, compares, or digests one.
type Template []float32

// Verifier is the biometric oracle consulted before registration and voting.
// Implementations are selected by configuration, never by probing for a
// library at runtime.
type Verifier interface {
	// Encode derives a template from a raw captured sample.
	Encode(sample []byte) (Template, error)
	// Matches compares a stored template against a fresh sample.
	Matches(stored Template, sample []byte) (bool, error)
}

// Bytes serializes a template for blob storage.
func (t Template) Bytes() []byte {
	out := make([]byte, len(t)*4)
	for i, v := range t {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeTemplate restores a template from its stored blob form.
func DecodeTemplate(raw []byte) Template {
	t := make(Template, len(raw)/4)
	for i := range t {
		t[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return t
}

// Digest returns the stable sha256 commitment of a template, in the 0x-hex
// form the ledger stores as bytes32.
func Digest(t Template) string {
	sum := sha256.Sum256(t.Bytes())
	return "0x" + hex.EncodeToString(sum[:])
}

// DigestBytes32 returns the same commitment as a fixed-width array for
// contract arguments.
func DigestBytes32(t Template) [32]byte {
	return sha256.Sum256(t.Bytes())
}

// New builds the verifier named by mode.
func New(mode string, threshold float64) (Verifier, error) {
	switch mode {
	case "embedding", "":
		return NewEmbeddingVerifier(threshold), nil
	case "accept-all":
		return AcceptAll{}, nil
	default:
		return nil, fmt.Errorf("unknown biometric mode: %q", mode)
	}
}
