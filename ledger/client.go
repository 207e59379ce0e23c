package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"votechain-backend/models"
)

// Backend is the slice of an Ethereum JSON-RPC client this package needs.
// *ethclient.Client satisfies it; tests plug in a fake.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ElectionView is the ledger's authoritative record of an election.
type ElectionView struct {
	ID             uint64       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Phase          models.Phase `json:"-"`
	CandidateCount uint64       `json:"candidate_count"`
	TotalVotes     uint64       `json:"total_votes"`
	CreatedAt      uint64       `json:"created_at"`
	StartedAt      uint64       `json:"started_at"`
	EndedAt        uint64       `json:"ended_at"`
}

type CandidateView struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Votes uint64 `json:"votes"`
}

// ReceiptView is the on-chain side of a vote receipt. VisibleTag has already
// had its bytes32 zero padding stripped.
type ReceiptView struct {
	ReceiptID  uint64 `json:"receipt_id"`
	ElectionID uint64 `json:"election_id"`
	VisibleTag string `json:"visible_tag"`
	Timestamp  uint64 `json:"timestamp"`
	Exists     bool   `json:"exists"`
}

// Client performs read-only calls against the election contract. Reads are
// safe to run concurrently; mutations go through the Submitter.
type Client struct {
	backend  Backend
	contract common.Address
	logger   *slog.Logger
}

func NewClient(backend Backend, contract common.Address, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:  backend,
		contract: contract,
		logger:   logger.With("component", "ledger"),
	}
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, models.WrapError(
			models.ErrValidation,
			fmt.Sprintf("cannot encode %s call", method),
			err,
		)
	}
	out, err := c.backend.CallContract(
		ctx,
		ethereum.CallMsg{To: &c.contract, Data: data},
		nil,
	)
	if err != nil {
		if isRevert(err) {
			reason := RevertReason(err)
			return nil, models.WrapError(ClassifyRevert(reason), reason, err)
		}
		return nil, models.WrapError(
			models.ErrTransportUnavailable,
			"ledger unreachable",
			err,
		)
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, models.WrapError(
			models.ErrLedgerRejected,
			fmt.Sprintf("cannot decode %s result", method),
			err,
		)
	}
	return vals, nil
}

func (c *Client) ElectionCount(ctx context.Context) (uint64, error) {
	vals, err := c.call(ctx, "getElectionCount")
	if err != nil {
		return 0, err
	}
	return asUint64(vals[0]), nil
}

func (c *Client) Election(ctx context.Context, electionID uint64) (*ElectionView, error) {
	vals, err := c.call(ctx, "getElection", new(big.Int).SetUint64(electionID))
	if err != nil {
		return nil, err
	}
	return &ElectionView{
		ID:             asUint64(vals[0]),
		Name:           vals[1].(string),
		Description:    vals[2].(string),
		Phase:          models.Phase(vals[3].(uint8)),
		CandidateCount: asUint64(vals[4]),
		TotalVotes:     asUint64(vals[5]),
		CreatedAt:      asUint64(vals[6]),
		StartedAt:      asUint64(vals[7]),
		EndedAt:        asUint64(vals[8]),
	}, nil
}

func (c *Client) Candidate(ctx context.Context, electionID, candidateID uint64) (*CandidateView, error) {
	vals, err := c.call(ctx, "getCandidate",
		new(big.Int).SetUint64(electionID),
		new(big.Int).SetUint64(candidateID),
	)
	if err != nil {
		return nil, err
	}
	return &CandidateView{
		ID:    asUint64(vals[0]),
		Name:  vals[1].(string),
		Votes: asUint64(vals[2]),
	}, nil
}

func (c *Client) ElectionPhase(ctx context.Context, electionID uint64) (models.Phase, error) {
	vals, err := c.call(ctx, "getElectionPhase", new(big.Int).SetUint64(electionID))
	if err != nil {
		return 0, err
	}
	return models.Phase(vals[0].(uint8)), nil
}

func (c *Client) VoteReceipt(ctx context.Context, receiptID uint64) (*ReceiptView, error) {
	vals, err := c.call(ctx, "getVoteReceipt", new(big.Int).SetUint64(receiptID))
	if err != nil {
		return nil, err
	}
	tag := vals[2].([32]byte)
	return &ReceiptView{
		ReceiptID:  asUint64(vals[0]),
		ElectionID: asUint64(vals[1]),
		VisibleTag: DecodeTag(tag),
		Timestamp:  asUint64(vals[3]),
		Exists:     vals[4].(bool),
	}, nil
}

func (c *Client) GlobalReceiptCounter(ctx context.Context) (uint64, error) {
	vals, err := c.call(ctx, "globalReceiptCounter")
	if err != nil {
		return 0, err
	}
	return asUint64(vals[0]), nil
}

// DecodeTag turns the contract's fixed-width tag field into text. The
// contract right-pads with zero bytes; those must be stripped before the
// bytes are readable.
func DecodeTag(tag [32]byte) string {
	return string(bytes.TrimRight(tag[:], "\x00"))
}

func asUint64(v any) uint64 {
	if b, ok := v.(*big.Int); ok {
		return b.Uint64()
	}
	return 0
}
