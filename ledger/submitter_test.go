package ledger

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/models"
)

// Well-known throwaway development key.
const testSigningKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeBackend struct {
	mu         sync.Mutex
	nonce      uint64
	inNonce    bool
	overlapped bool
	callErr    error
	sendErr    error
	noReceipts bool
	logsFor    func(tx *types.Transaction) []*types.Log
	receipts   map[common.Hash]*types.Receipt
	sent       []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{receipts: make(map[common.Hash]*types.Receipt)}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	return nil, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	if f.inNonce {
		f.overlapped = true
	}
	f.inNonce = true
	n := f.nonce
	f.mu.Unlock()

	// Widen the window between nonce read and send so interleaved
	// submissions would be caught.
	time.Sleep(time.Millisecond)
	return n, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inNonce = false
	if f.sendErr != nil {
		return f.sendErr
	}
	if tx.Nonce() != f.nonce {
		f.overlapped = true
	}
	f.nonce++
	f.sent = append(f.sent, tx)
	if !f.noReceipts {
		receipt := &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			GasUsed:     21_000,
			BlockNumber: big.NewInt(int64(f.nonce)),
			TxHash:      tx.Hash(),
		}
		if f.logsFor != nil {
			receipt.Logs = f.logsFor(tx)
		}
		f.receipts[tx.Hash()] = receipt
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func newTestSubmitter(t *testing.T, backend *fakeBackend) *Submitter {
	t.Helper()
	sub, err := NewSubmitter(SubmitterConfig{
		Backend:             backend,
		Contract:            testContract,
		SigningKeyHex:       testSigningKey,
		ChainID:             1337,
		ConfirmationTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	sub.pollInterval = time.Millisecond
	sub.Start()
	t.Cleanup(sub.Stop)
	return sub
}

func TestSubmitConfirmsTransaction(t *testing.T) {
	backend := newFakeBackend()
	sub := newTestSubmitter(t, backend)

	res, err := sub.StartElection(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, res.TxHash)
	assert.Equal(t, uint64(21_000), res.GasUsed)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(0), backend.sent[0].Nonce())
	assert.Equal(t, operationGas[OpStartElection], backend.sent[0].Gas())
}

func TestSubmitSerializesConcurrentMutations(t *testing.T) {
	backend := newFakeBackend()
	sub := newTestSubmitter(t, backend)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sub.StartElection(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, backend.overlapped, "nonce acquisition must never interleave")
	require.Len(t, backend.sent, workers)
	seen := make(map[uint64]bool)
	for _, tx := range backend.sent {
		assert.False(t, seen[tx.Nonce()], "nonce %d reused", tx.Nonce())
		seen[tx.Nonce()] = true
	}
}

func TestSubmitClassifiesPreflightRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = &fakeDataError{
		msg:  "execution reverted",
		data: encodedRevert(t, "Voter has already voted"),
	}
	sub := newTestSubmitter(t, backend)

	_, err := sub.Vote(context.Background(), 1, "E100", [32]byte{}, 1)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrAlreadyActed))
	assert.Equal(t, "Voter has already voted", models.ReasonOf(err))
	assert.Empty(t, backend.sent, "a failed preflight must not broadcast")
}

func TestSubmitTimesOutWaitingForConfirmation(t *testing.T) {
	backend := newFakeBackend()
	backend.noReceipts = true
	sub, err := NewSubmitter(SubmitterConfig{
		Backend:             backend,
		Contract:            testContract,
		SigningKeyHex:       testSigningKey,
		ChainID:             1337,
		ConfirmationTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	sub.pollInterval = time.Millisecond
	sub.Start()
	t.Cleanup(sub.Stop)

	_, err = sub.EndElection(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrConfirmationTimeout))
}

func TestSubmitBroadcastFailureIsTransport(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = context.DeadlineExceeded
	sub := newTestSubmitter(t, backend)

	_, err := sub.CreateElection(context.Background(), "Club President", "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTransportUnavailable))
}

func TestVoteExtractsReceiptIDFromLogs(t *testing.T) {
	backend := newFakeBackend()
	backend.logsFor = func(tx *types.Transaction) []*types.Log {
		return []*types.Log{{
			Address: testContract,
			Topics: []common.Hash{
				contractABI.Events["VoteCast"].ID,
				common.BigToHash(big.NewInt(1)),
			},
			Data: common.BigToHash(big.NewInt(42)).Bytes(),
		}}
	}
	sub := newTestSubmitter(t, backend)

	res, err := sub.Vote(context.Background(), 1, "E100", [32]byte{}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.ReceiptID)
}

func TestCreateElectionExtractsIDFromLogs(t *testing.T) {
	backend := newFakeBackend()
	backend.logsFor = func(tx *types.Transaction) []*types.Log {
		return []*types.Log{{
			Address: testContract,
			Topics:  []common.Hash{contractABI.Events["ElectionCreated"].ID},
			Data:    common.BigToHash(big.NewInt(5)).Bytes(),
		}}
	}
	sub := newTestSubmitter(t, backend)

	res, err := sub.CreateElection(context.Background(), "Club President", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.ElectionID)
}

func TestVoteIgnoresForeignLogs(t *testing.T) {
	backend := newFakeBackend()
	backend.logsFor = func(tx *types.Transaction) []*types.Log {
		return []*types.Log{{
			Address: common.HexToAddress("0x1"),
			Topics:  []common.Hash{contractABI.Events["VoteCast"].ID},
			Data:    common.BigToHash(big.NewInt(42)).Bytes(),
		}}
	}
	sub := newTestSubmitter(t, backend)

	res, err := sub.Vote(context.Background(), 1, "E100", [32]byte{}, 1)
	require.NoError(t, err)
	assert.Zero(t, res.ReceiptID)
}

func TestNewSubmitterRejectsBadKey(t *testing.T) {
	_, err := NewSubmitter(SubmitterConfig{
		Backend:       newFakeBackend(),
		Contract:      testContract,
		SigningKeyHex: "not-a-key",
	})
	assert.Error(t, err)
}
