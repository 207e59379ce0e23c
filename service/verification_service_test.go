package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/models"
)

// castTestVote runs a full registration and vote, returning the receipt id.
func castTestVote(t *testing.T, env *testEnv) uint64 {
	t.Helper()
	id := env.createElection(t, true, nil)
	env.startElection(t, id)
	sample := []byte("voter-face")
	env.register(t, id, "E100", sample)

	outcome, err := env.votes.CastVote(context.Background(), id, "E100", sample, 1)
	require.NoError(t, err)
	return outcome.ReceiptID
}

func TestVerifyReceiptFromLedger(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	result, err := env.verification.VerifyReceipt(context.Background(), receiptID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "ledger", result.Source)
	require.NotNil(t, result.Ledger)
	assert.True(t, result.Ledger.Exists)
	require.NotNil(t, result.Cached)
	assert.Equal(t, receiptID, result.Cached.ReceiptID)
}

func TestVerifyReceiptFallsBackWhenLedgerDown(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	env.mock.SetUnreachable(true)

	result, err := env.verification.VerifyReceipt(context.Background(), receiptID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "cache", result.Source)
	assert.Nil(t, result.Ledger)
	require.NotNil(t, result.Cached)
}

func TestVerifyReceiptFallsBackOnContractError(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	env.mock.FailNextRead("Invalid receipt id")

	result, err := env.verification.VerifyReceipt(context.Background(), receiptID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "cache", result.Source)
	assert.Nil(t, result.Ledger)
	require.NotNil(t, result.Cached)
	assert.Equal(t, receiptID, result.Cached.ReceiptID)
}

func TestVerifyReceiptContractErrorAndNoCache(t *testing.T) {
	env := newTestEnv(t)
	castTestVote(t, env)

	env.mock.FailNextRead("Invalid receipt id")

	_, err := env.verification.VerifyReceipt(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrLedgerRejected))
}

func TestVerifyReceiptLedgerDownAndNoCache(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetUnreachable(true)

	_, err := env.verification.VerifyReceipt(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTransportUnavailable))
}

func TestVerifyReceiptCacheAnswersLedgerDivergence(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	env.mock.DeleteReceipt(receiptID)

	result, err := env.verification.VerifyReceipt(context.Background(), receiptID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "cache", result.Source)
	assert.Contains(t, result.Message, "local records")
}

func TestVerifyReceiptUnknownEverywhere(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.verification.VerifyReceipt(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrNotFound))
}

func TestVerifyReceiptRequiresID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.verification.VerifyReceipt(context.Background(), 0)
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestFindReceiptByEnrollment(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	receipt, exact, err := env.verification.FindReceipt("E100", 1)
	require.NoError(t, err)
	assert.True(t, exact)
	assert.Equal(t, receiptID, receipt.ReceiptID)

	_, _, err = env.verification.FindReceipt("E404", 1)
	assert.True(t, models.IsKind(err, models.ErrNotFound))
}

func TestVerificationMetricsRecorded(t *testing.T) {
	env := newTestEnv(t)
	receiptID := castTestVote(t, env)

	_, err := env.verification.VerifyReceipt(context.Background(), receiptID)
	require.NoError(t, err)

	snap := env.metrics.Snapshot()
	assert.Equal(t, 1, snap.Verification.Count)
}
