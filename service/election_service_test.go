package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/ledger"
	"votechain-backend/models"
)

func TestCreateElectionCachesPolicyRow(t *testing.T) {
	env := newTestEnv(t)
	expires := time.Now().Add(time.Hour)

	id, txHash, err := env.elections.CreateElection(context.Background(), "Club President", "Annual", false, &expires)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.NotEmpty(t, txHash)

	row, err := env.store.ElectionByBlockchainID(id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCreated.String(), row.Phase)
	assert.False(t, row.IsLiveResults)
	require.NotNil(t, row.ExpiresAt)
	assert.WithinDuration(t, expires, *row.ExpiresAt, time.Second)
}

// noEventWriter strips the event-derived election id from confirmations,
// simulating a contract that does not emit ElectionCreated.
type noEventWriter struct{ LedgerWriter }

func (w noEventWriter) CreateElection(ctx context.Context, name, description string) (*ledger.TxResult, error) {
	res, err := w.LedgerWriter.CreateElection(ctx, name, description)
	if err != nil {
		return nil, err
	}
	res.ElectionID = 0
	return res, nil
}

func TestCreateElectionFallsBackToCount(t *testing.T) {
	env := newTestEnv(t)
	env.elections.writer = noEventWriter{env.mock}

	id, _, err := env.elections.CreateElection(context.Background(), "Club President", "", true, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	row, err := env.store.ElectionByBlockchainID(id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCreated.String(), row.Phase)
}

func TestCreateElectionRequiresName(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.elections.CreateElection(context.Background(), "  ", "", true, nil)
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestLifecycleMirrorsPhaseIntoCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createElection(t, true, nil)

	env.startElection(t, id)
	row, err := env.store.ElectionByBlockchainID(id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseActive.String(), row.Phase)
	assert.NotNil(t, row.StartedAt)

	_, err = env.elections.EndElection(ctx, id)
	require.NoError(t, err)
	_, err = env.elections.DeclareResults(ctx, id)
	require.NoError(t, err)

	row, err = env.store.ElectionByBlockchainID(id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResultDeclared.String(), row.Phase)
	assert.NotNil(t, row.EndedAt)
}

func TestTransitionRejectedByLedgerLeavesCacheAlone(t *testing.T) {
	env := newTestEnv(t)
	id := env.createElection(t, true, nil)

	// Ending an election that never started is a contract rule violation.
	_, err := env.elections.EndElection(context.Background(), id)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrLedgerRejected))

	row, rerr := env.store.ElectionByBlockchainID(id)
	require.NoError(t, rerr)
	assert.Equal(t, models.PhaseCreated.String(), row.Phase)
}

func TestEffectivePhaseFollowsLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createElection(t, true, nil)

	phase, err := env.elections.EffectivePhase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCreated, phase)

	env.startElection(t, id)
	phase, err = env.elections.EffectivePhase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseActive, phase)
}

func TestEffectivePhaseExpiredOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	id := env.createElection(t, true, &expires)
	env.startElection(t, id)

	env.freezeClock(expires.Add(time.Minute))

	phase, err := env.elections.EffectivePhase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseExpired, phase)

	// The ledger itself still reports the election active.
	ledgerPhase, err := env.mock.ElectionPhase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseActive, ledgerPhase)
}

func TestEffectivePhaseExpiryOnlyAppliesToActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	id := env.createElection(t, true, &expires)
	env.startElection(t, id)
	_, err := env.elections.EndElection(ctx, id)
	require.NoError(t, err)

	env.freezeClock(expires.Add(time.Minute))

	phase, err := env.elections.EffectivePhase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnded, phase)
}

func TestEffectivePhaseFailsClosedWhenLedgerDown(t *testing.T) {
	env := newTestEnv(t)
	id := env.createElection(t, true, nil)

	env.mock.SetUnreachable(true)

	_, err := env.elections.EffectivePhase(context.Background(), id)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTransportUnavailable))
}

func TestListElectionsMergesCache(t *testing.T) {
	env := newTestEnv(t)
	expires := time.Now().Add(time.Hour)
	first := env.createElection(t, false, &expires)
	second := env.createElection(t, true, nil)

	list, err := env.elections.ListElections(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, first, list[0].ID)
	assert.False(t, list[0].IsLiveResults)
	assert.NotNil(t, list[0].ExpiresAt)

	assert.Equal(t, second, list[1].ID)
	assert.True(t, list[1].IsLiveResults)
	assert.Nil(t, list[1].ExpiresAt)
}

func TestListCandidatesHidesTalliesUntilDeclared(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createElection(t, false, nil)
	env.startElection(t, id)

	sample := []byte("voter-face")
	env.register(t, id, "E100", sample)
	_, err := env.votes.CastVote(ctx, id, "E100", sample, 1)
	require.NoError(t, err)

	candidates, err := env.elections.ListCandidates(ctx, id)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Zero(t, c.Votes, "tallies must stay hidden while results are undeclared")
		assert.NotEmpty(t, c.Name)
	}

	_, err = env.elections.EndElection(ctx, id)
	require.NoError(t, err)
	_, err = env.elections.DeclareResults(ctx, id)
	require.NoError(t, err)

	candidates, err = env.elections.ListCandidates(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), candidates[0].Votes)
	assert.Zero(t, candidates[1].Votes)
}

func TestListCandidatesLiveResultsVisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createElection(t, true, nil)
	env.startElection(t, id)

	sample := []byte("voter-face")
	env.register(t, id, "E100", sample)
	_, err := env.votes.CastVote(ctx, id, "E100", sample, 2)
	require.NoError(t, err)

	candidates, err := env.elections.ListCandidates(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, candidates[0].Votes)
	assert.Equal(t, uint64(1), candidates[1].Votes)
}
