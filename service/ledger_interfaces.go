package service

import (
	"context"

	"votechain-backend/ledger"
	"votechain-backend/models"
)

// LedgerReader is the read-only contract surface services consume.
// Satisfied by *ledger.Client and by the in-memory mock.
type LedgerReader interface {
	ElectionCount(ctx context.Context) (uint64, error)
	Election(ctx context.Context, electionID uint64) (*ledger.ElectionView, error)
	Candidate(ctx context.Context, electionID, candidateID uint64) (*ledger.CandidateView, error)
	ElectionPhase(ctx context.Context, electionID uint64) (models.Phase, error)
	VoteReceipt(ctx context.Context, receiptID uint64) (*ledger.ReceiptView, error)
	GlobalReceiptCounter(ctx context.Context) (uint64, error)
}

// LedgerWriter is the mutating contract surface. Satisfied by
// *ledger.Submitter, whose single worker serializes every mutation from the
// shared signing account.
type LedgerWriter interface {
	CreateElection(ctx context.Context, name, description string) (*ledger.TxResult, error)
	AddCandidate(ctx context.Context, electionID uint64, name string) (*ledger.TxResult, error)
	StartElection(ctx context.Context, electionID uint64) (*ledger.TxResult, error)
	EndElection(ctx context.Context, electionID uint64) (*ledger.TxResult, error)
	DeclareResults(ctx context.Context, electionID uint64) (*ledger.TxResult, error)
	RegisterVoter(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte) (*ledger.TxResult, error)
	Vote(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte, candidateID uint64) (*ledger.TxResult, error)
}
