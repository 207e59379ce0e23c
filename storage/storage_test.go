package storage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/anonymizer"
	"votechain-backend/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open("", logger)
	require.NoError(t, err)
	return store
}

func TestOpenInMemoryMigrates(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Ping())

	voters, elections, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, voters)
	assert.Zero(t, elections)
}

func TestRecordReceiptIsInsertOnly(t *testing.T) {
	store := newTestStore(t)

	hash := anonymizer.EnrollmentHash("E100", 3)
	row := &models.VoteReceipt{
		ReceiptID:      1,
		ElectionID:     3,
		EnrollmentHash: hash,
		VisibleTag:     anonymizer.VisibleTag(hash),
		TxHash:         "0xabc",
		BlockNumber:    12,
	}
	require.NoError(t, store.RecordReceipt(row))

	dup := *row
	dup.ID = 0
	dup.TxHash = "0xdef"
	assert.Error(t, store.RecordReceipt(&dup), "duplicate receipt id must be rejected")

	got, err := store.ReceiptByID(1)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.TxHash)
}

func TestReceiptLookupPrefersCombinedMatch(t *testing.T) {
	store := newTestStore(t)

	hash := anonymizer.EnrollmentHash("E100", 3)
	require.NoError(t, store.RecordReceipt(&models.VoteReceipt{
		ReceiptID:      7,
		ElectionID:     3,
		EnrollmentHash: hash,
		VisibleTag:     anonymizer.VisibleTag(hash),
	}))

	got, exact, err := store.ReceiptByEnrollmentHash(hash, 3)
	require.NoError(t, err)
	assert.True(t, exact)
	assert.Equal(t, uint64(7), got.ReceiptID)
}

func TestReceiptLookupFallsBackToHashOnly(t *testing.T) {
	store := newTestStore(t)

	hash := anonymizer.EnrollmentHash("E100", 3)
	require.NoError(t, store.RecordReceipt(&models.VoteReceipt{
		ReceiptID:      7,
		ElectionID:     99, // drifted election id
		EnrollmentHash: hash,
	}))

	got, exact, err := store.ReceiptByEnrollmentHash(hash, 3)
	require.NoError(t, err)
	assert.False(t, exact)
	assert.Equal(t, uint64(7), got.ReceiptID)

	_, _, err = store.ReceiptByEnrollmentHash(anonymizer.EnrollmentHash("E200", 3), 3)
	assert.True(t, models.IsKind(err, models.ErrNotFound))
}

func TestAdvancePhaseIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertElection(&models.Election{
		BlockchainID: 1,
		Name:         "Club President",
		Phase:        models.PhaseCreated.String(),
	}))

	now := time.Now()
	require.NoError(t, store.AdvancePhase(1, models.PhaseActive, now))
	require.NoError(t, store.AdvancePhase(1, models.PhaseEnded, now))

	// A confirmed transition never moves the cache backwards.
	require.NoError(t, store.AdvancePhase(1, models.PhaseActive, now))

	row, err := store.ElectionByBlockchainID(1)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnded.String(), row.Phase)
	assert.NotNil(t, row.StartedAt)
	assert.NotNil(t, row.EndedAt)
}

func TestUpsertElectionKeepsSingleRow(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertElection(&models.Election{BlockchainID: 1, Name: "First"}))
	require.NoError(t, store.UpsertElection(&models.Election{BlockchainID: 1, Name: "Renamed", Phase: models.PhaseActive.String()}))

	rows, err := store.Elections()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Renamed", rows[1].Name)
}

func TestRegistrationUniquePerVoterAndElection(t *testing.T) {
	store := newTestStore(t)

	voter := &models.Voter{Enrollment: "E100", Name: "Asha"}
	require.NoError(t, store.CreateVoter(voter))

	require.NoError(t, store.CreateRegistration(&models.VoterElectionRegistration{
		VoterID:    voter.ID,
		ElectionID: 1,
		Enrollment: voter.Enrollment,
	}))
	assert.Error(t, store.CreateRegistration(&models.VoterElectionRegistration{
		VoterID:    voter.ID,
		ElectionID: 1,
		Enrollment: voter.Enrollment,
	}))

	// Same voter, another election is fine.
	require.NoError(t, store.CreateRegistration(&models.VoterElectionRegistration{
		VoterID:    voter.ID,
		ElectionID: 2,
		Enrollment: voter.Enrollment,
	}))
}

func TestMarkVoted(t *testing.T) {
	store := newTestStore(t)

	voter := &models.Voter{Enrollment: "E100"}
	require.NoError(t, store.CreateVoter(voter))
	require.NoError(t, store.CreateRegistration(&models.VoterElectionRegistration{
		VoterID:    voter.ID,
		ElectionID: 1,
		Enrollment: voter.Enrollment,
	}))

	require.NoError(t, store.MarkVoted(voter.ID, 1))

	reg, err := store.RegistrationFor(voter.ID, 1)
	require.NoError(t, err)
	assert.True(t, reg.HasVoted)
}
