package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"votechain-backend/models"
)

// Operation names a contract mutation. The values are the ABI method names.
type Operation string

const (
	OpCreateElection Operation = "createElection"
	OpAddCandidate   Operation = "addCandidate"
	OpStartElection  Operation = "startElection"
	OpEndElection    Operation = "endElection"
	OpDeclareResults Operation = "declareResults"
	OpRegisterVoter  Operation = "registerVoter"
	OpVote           Operation = "vote"
)

// Per-operation gas budgets. Anything not listed falls back to the vote
// budget.
var operationGas = map[Operation]uint64{
	OpCreateElection: 500_000,
	OpAddCandidate:   300_000,
	OpStartElection:  300_000,
	OpEndElection:    300_000,
	OpDeclareResults: 300_000,
	OpRegisterVoter:  500_000,
	OpVote:           500_000,
}

const fallbackGas = 500_000

// DefaultConfirmationTimeout bounds the wait for transaction inclusion.
const DefaultConfirmationTimeout = 60 * time.Second

const defaultPollInterval = 500 * time.Millisecond

// TxResult describes a confirmed mutation.
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	// ReceiptID is set for vote operations when the VoteCast event could be
	// decoded from the confirmation logs.
	ReceiptID uint64 `json:"receipt_id,omitempty"`
	// ElectionID is set for create operations when the ElectionCreated event
	// could be decoded from the confirmation logs.
	ElectionID uint64 `json:"election_id,omitempty"`
}

type submitRequest struct {
	ctx      context.Context
	op       Operation
	args     []any
	resultCh chan submitResult
}

type submitResult struct {
	res *TxResult
	err error
}

// Submitter builds, signs, broadcasts, and awaits contract mutations. All
// mutations from the signing account flow through one channel drained by a
// single worker goroutine, so the nonce read, build, sign, and send sequence
// is never raced by a concurrent mutation. Read calls stay outside this
// queue entirely.
//
// The submitter never touches the local cache; callers update it only after
// a confirmed result comes back.
type Submitter struct {
	backend  Backend
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int

	gasPrice            *big.Int
	confirmationTimeout time.Duration
	pollInterval        time.Duration

	requestCh  chan *submitRequest
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

type SubmitterConfig struct {
	Backend             Backend
	Contract            common.Address
	SigningKeyHex       string
	ChainID             int64
	GasPriceWei         int64
	ConfirmationTimeout time.Duration
	QueueSize           int
	Logger              *slog.Logger
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(cfg.SigningKeyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if cfg.GasPriceWei <= 0 {
		cfg.GasPriceWei = 1_000_000_000 // 1 gwei
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		backend:             cfg.Backend,
		contract:            cfg.Contract,
		key:                 key,
		from:                crypto.PubkeyToAddress(key.PublicKey),
		chainID:             big.NewInt(cfg.ChainID),
		gasPrice:            big.NewInt(cfg.GasPriceWei),
		confirmationTimeout: cfg.ConfirmationTimeout,
		pollInterval:        defaultPollInterval,
		requestCh:           make(chan *submitRequest, cfg.QueueSize),
		shutdownCh:          make(chan struct{}),
		logger:              logger.With("component", "submitter"),
	}, nil
}

// From returns the signing account address.
func (s *Submitter) From() common.Address {
	return s.from
}

// Start launches the single writer goroutine.
func (s *Submitter) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop drains nothing: pending requests get a shutdown error. In-flight work
// completes before Stop returns.
func (s *Submitter) Stop() {
	close(s.shutdownCh)
	s.wg.Wait()
}

// Submit queues one mutation and blocks until it is confirmed or fails. The
// error taxonomy distinguishes a revert (with its extracted reason) from a
// confirmation timeout and from an unreachable node; a timeout does not mean
// the transaction was dropped.
func (s *Submitter) Submit(ctx context.Context, op Operation, args ...any) (*TxResult, error) {
	req := &submitRequest{
		ctx:      ctx,
		op:       op,
		args:     args,
		resultCh: make(chan submitResult, 1),
	}

	select {
	case s.requestCh <- req:
	case <-s.shutdownCh:
		return nil, models.NewError(models.ErrTransportUnavailable, "submitter is shut down")
	case <-ctx.Done():
		return nil, models.WrapError(models.ErrTransportUnavailable, "submission canceled", ctx.Err())
	}

	select {
	case r := <-req.resultCh:
		return r.res, r.err
	case <-s.shutdownCh:
		return nil, models.NewError(models.ErrTransportUnavailable, "submitter is shut down")
	}
}

func (s *Submitter) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdownCh:
			return
		case req := <-s.requestCh:
			start := time.Now()
			res, err := s.process(req)
			if err != nil {
				s.logger.Warn("submission failed",
					"op", string(req.op),
					"elapsed", time.Since(start),
					"error", err,
				)
			} else {
				s.logger.Info("transaction confirmed",
					"op", string(req.op),
					"tx", res.TxHash,
					"block", res.BlockNumber,
					"elapsed", time.Since(start),
				)
			}
			req.resultCh <- submitResult{res: res, err: err}
		}
	}
}

func (s *Submitter) process(req *submitRequest) (*TxResult, error) {
	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := contractABI.Pack(string(req.op), req.args...)
	if err != nil {
		return nil, models.WrapError(
			models.ErrValidation,
			fmt.Sprintf("cannot encode %s arguments", req.op),
			err,
		)
	}

	gas, ok := operationGas[req.op]
	if !ok {
		gas = fallbackGas
	}

	// Simulate first so contract rejections surface with their revert
	// reason instead of an opaque on-chain failure.
	_, err = s.backend.CallContract(ctx, ethereum.CallMsg{
		From:     s.from,
		To:       &s.contract,
		Gas:      gas,
		GasPrice: s.gasPrice,
		Data:     data,
	}, nil)
	if err != nil {
		if isRevert(err) {
			reason := RevertReason(err)
			return nil, models.WrapError(ClassifyRevert(reason), reason, err)
		}
		return nil, models.WrapError(models.ErrTransportUnavailable, "ledger unreachable", err)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, models.WrapError(models.ErrTransportUnavailable, "cannot fetch account nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.contract,
		Gas:      gas,
		GasPrice: s.gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, models.WrapError(models.ErrLedgerRejected, "cannot sign transaction", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		if isRevert(err) {
			reason := RevertReason(err)
			return nil, models.WrapError(ClassifyRevert(reason), reason, err)
		}
		return nil, models.WrapError(models.ErrTransportUnavailable, "broadcast failed", err)
	}

	receipt, err := s.waitConfirmed(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, models.NewError(models.ErrLedgerRejected, "transaction reverted on-chain")
	}

	res := &TxResult{
		TxHash:  signed.Hash().Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	switch req.op {
	case OpVote:
		if id, ok := s.eventIDFromLogs(receipt, "VoteCast"); ok {
			res.ReceiptID = id
		}
	case OpCreateElection:
		if id, ok := s.eventIDFromLogs(receipt, "ElectionCreated"); ok {
			res.ElectionID = id
		}
	}
	return res, nil
}

func (s *Submitter) waitConfirmed(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(s.confirmationTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, models.Errorf(
				models.ErrConfirmationTimeout,
				"transaction %s not confirmed within %s; it may still be included later",
				txHash.Hex(), s.confirmationTimeout,
			)
		}

		select {
		case <-ctx.Done():
			return nil, models.WrapError(
				models.ErrConfirmationTimeout,
				fmt.Sprintf("wait for transaction %s canceled; it may still be included later", txHash.Hex()),
				ctx.Err(),
			)
		case <-ticker.C:
		}
	}
}

// eventIDFromLogs extracts the first non-indexed uint argument of the named
// contract event from the confirmation logs.
func (s *Submitter) eventIDFromLogs(receipt *types.Receipt, event string) (uint64, bool) {
	eventID := contractABI.Events[event].ID
	for _, entry := range receipt.Logs {
		if entry.Address != s.contract {
			continue
		}
		if len(entry.Topics) == 0 || entry.Topics[0] != eventID {
			continue
		}
		vals, err := contractABI.Unpack(event, entry.Data)
		if err != nil || len(vals) == 0 {
			s.logger.Warn("cannot decode event", "event", event, "tx", receipt.TxHash.Hex(), "error", err)
			return 0, false
		}
		if id, ok := vals[0].(*big.Int); ok {
			return id.Uint64(), true
		}
	}
	return 0, false
}

// Typed wrappers around Submit, one per contract mutation.

func (s *Submitter) CreateElection(ctx context.Context, name, description string) (*TxResult, error) {
	return s.Submit(ctx, OpCreateElection, name, description)
}

func (s *Submitter) AddCandidate(ctx context.Context, electionID uint64, name string) (*TxResult, error) {
	return s.Submit(ctx, OpAddCandidate, new(big.Int).SetUint64(electionID), name)
}

func (s *Submitter) StartElection(ctx context.Context, electionID uint64) (*TxResult, error) {
	return s.Submit(ctx, OpStartElection, new(big.Int).SetUint64(electionID))
}

func (s *Submitter) EndElection(ctx context.Context, electionID uint64) (*TxResult, error) {
	return s.Submit(ctx, OpEndElection, new(big.Int).SetUint64(electionID))
}

func (s *Submitter) DeclareResults(ctx context.Context, electionID uint64) (*TxResult, error) {
	return s.Submit(ctx, OpDeclareResults, new(big.Int).SetUint64(electionID))
}

func (s *Submitter) RegisterVoter(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte) (*TxResult, error) {
	return s.Submit(ctx, OpRegisterVoter, new(big.Int).SetUint64(electionID), enrollment, faceHash)
}

func (s *Submitter) Vote(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte, candidateID uint64) (*TxResult, error) {
	return s.Submit(ctx, OpVote,
		new(big.Int).SetUint64(electionID),
		enrollment,
		faceHash,
		new(big.Int).SetUint64(candidateID),
	)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
