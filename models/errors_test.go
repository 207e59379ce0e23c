package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindAndReason(t *testing.T) {
	err := NewError(ErrPhaseGate, "voting not allowed. election phase: ENDED")
	assert.Equal(t, ErrPhaseGate, KindOf(err))
	assert.True(t, IsKind(err, ErrPhaseGate))
	assert.Equal(t, "voting not allowed. election phase: ENDED", ReasonOf(err))
}

func TestWrapErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError(ErrTransportUnavailable, "ledger unreachable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrTransportUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NewError(ErrAlreadyActed, "Voter has already voted")
	outer := fmt.Errorf("casting vote: %w", inner)

	assert.True(t, IsKind(outer, ErrAlreadyActed))
	assert.Equal(t, "Voter has already voted", ReasonOf(outer))
}

func TestForeignErrorsHaveNoKind(t *testing.T) {
	err := errors.New("plain failure")
	assert.Equal(t, ErrorKind(""), KindOf(err))
	assert.False(t, IsKind(err, ErrValidation))
	assert.Equal(t, "plain failure", ReasonOf(err))
	assert.Equal(t, "", ReasonOf(nil))
}
