package mockledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"votechain-backend/anonymizer"
	"votechain-backend/ledger"
	"votechain-backend/models"
)

// MockLedger is an in-memory stand-in for the election contract. It enforces
// the same rules the real contract does (phase transitions, one vote per
// registered voter, candidate setup only before start) and speaks the same
// error taxonomy, so services and tests exercise real failure paths without
// a node.
type MockLedger struct {
	mu             sync.RWMutex
	elections      map[uint64]*electionState
	receipts       map[uint64]*ledger.ReceiptView
	electionCount  uint64
	receiptCounter uint64
	blockNumber    uint64

	unreachable        bool
	forcedRevert       string
	forcedReadRevert   string
	suppressReceiptIDs bool
}

type electionState struct {
	view       ledger.ElectionView
	candidates []*ledger.CandidateView
	registered map[string][32]byte
	voted      map[string]bool
}

func New() *MockLedger {
	return &MockLedger{
		elections: make(map[uint64]*electionState),
		receipts:  make(map[uint64]*ledger.ReceiptView),
	}
}

// SetUnreachable makes every call fail as if the node were down.
func (m *MockLedger) SetUnreachable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable = down
}

// FailNextMutation forces the next mutation to revert with the given reason.
func (m *MockLedger) FailNextMutation(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedRevert = reason
}

// SuppressReceiptIDs strips receipt ids from vote confirmations, simulating
// logs the event decoder could not read.
func (m *MockLedger) SuppressReceiptIDs(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressReceiptIDs = on
}

// FailNextRead forces the next receipt lookup to revert with the given
// reason, simulating a contract-level read failure.
func (m *MockLedger) FailNextRead(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedReadRevert = reason
}

// DeleteReceipt drops an issued receipt, simulating ledger/cache divergence.
func (m *MockLedger) DeleteReceipt(receiptID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.receipts, receiptID)
}

func (m *MockLedger) transportErr() error {
	return models.NewError(models.ErrTransportUnavailable, "ledger unreachable")
}

func revert(reason string) error {
	return models.NewError(ledger.ClassifyRevert(reason), reason)
}

func (m *MockLedger) mutate() (*ledger.TxResult, error) {
	if m.unreachable {
		return nil, m.transportErr()
	}
	if m.forcedRevert != "" {
		reason := m.forcedRevert
		m.forcedRevert = ""
		return nil, revert(reason)
	}
	m.blockNumber++
	sum := sha256.Sum256(fmt.Appendf(nil, "mocktx-%d", m.blockNumber))
	return &ledger.TxResult{
		TxHash:      "0x" + hex.EncodeToString(sum[:]),
		BlockNumber: m.blockNumber,
		GasUsed:     21_000,
	}, nil
}

// Reader surface.

func (m *MockLedger) ElectionCount(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return 0, m.transportErr()
	}
	return m.electionCount, nil
}

func (m *MockLedger) Election(ctx context.Context, electionID uint64) (*ledger.ElectionView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return nil, m.transportErr()
	}
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	view := st.view
	return &view, nil
}

func (m *MockLedger) Candidate(ctx context.Context, electionID, candidateID uint64) (*ledger.CandidateView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return nil, m.transportErr()
	}
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	if candidateID == 0 || candidateID > uint64(len(st.candidates)) {
		return nil, revert("Invalid candidate")
	}
	view := *st.candidates[candidateID-1]
	return &view, nil
}

func (m *MockLedger) ElectionPhase(ctx context.Context, electionID uint64) (models.Phase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return 0, m.transportErr()
	}
	st, ok := m.elections[electionID]
	if !ok {
		return 0, revert("Election does not exist")
	}
	return st.view.Phase, nil
}

func (m *MockLedger) VoteReceipt(ctx context.Context, receiptID uint64) (*ledger.ReceiptView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unreachable {
		return nil, m.transportErr()
	}
	if m.forcedReadRevert != "" {
		reason := m.forcedReadRevert
		m.forcedReadRevert = ""
		return nil, revert(reason)
	}
	view, ok := m.receipts[receiptID]
	if !ok {
		return &ledger.ReceiptView{ReceiptID: receiptID, Exists: false}, nil
	}
	out := *view
	return &out, nil
}

func (m *MockLedger) GlobalReceiptCounter(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return 0, m.transportErr()
	}
	return m.receiptCounter, nil
}

// Writer surface.

func (m *MockLedger) CreateElection(ctx context.Context, name, description string) (*ledger.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.mutate()
	if err != nil {
		return nil, err
	}
	m.electionCount++
	m.elections[m.electionCount] = &electionState{
		view: ledger.ElectionView{
			ID:          m.electionCount,
			Name:        name,
			Description: description,
			Phase:       models.PhaseCreated,
			CreatedAt:   uint64(time.Now().Unix()),
		},
		registered: make(map[string][32]byte),
		voted:      make(map[string]bool),
	}
	res.ElectionID = m.electionCount
	return res, nil
}

func (m *MockLedger) AddCandidate(ctx context.Context, electionID uint64, name string) (*ledger.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	if !m.unreachable && m.forcedRevert == "" && st.view.Phase != models.PhaseCreated {
		return nil, revert("Candidates can only be added before the election starts")
	}
	res, err := m.mutate()
	if err != nil {
		return nil, err
	}
	st.candidates = append(st.candidates, &ledger.CandidateView{
		ID:   uint64(len(st.candidates) + 1),
		Name: name,
	})
	st.view.CandidateCount = uint64(len(st.candidates))
	return res, nil
}

func (m *MockLedger) StartElection(ctx context.Context, electionID uint64) (*ledger.TxResult, error) {
	return m.transition(electionID, models.PhaseCreated, models.PhaseActive, "Election cannot be started")
}

func (m *MockLedger) EndElection(ctx context.Context, electionID uint64) (*ledger.TxResult, error) {
	return m.transition(electionID, models.PhaseActive, models.PhaseEnded, "Election is not active")
}

func (m *MockLedger) DeclareResults(ctx context.Context, electionID uint64) (*ledger.TxResult, error) {
	return m.transition(electionID, models.PhaseEnded, models.PhaseResultDeclared, "Results can only be declared after the election ends")
}

func (m *MockLedger) transition(electionID uint64, from, to models.Phase, reason string) (*ledger.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	if !m.unreachable && m.forcedRevert == "" && st.view.Phase != from {
		return nil, revert(reason)
	}
	res, err := m.mutate()
	if err != nil {
		return nil, err
	}
	st.view.Phase = to
	now := uint64(time.Now().Unix())
	switch to {
	case models.PhaseActive:
		st.view.StartedAt = now
	case models.PhaseEnded:
		st.view.EndedAt = now
	}
	return res, nil
}

func (m *MockLedger) RegisterVoter(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte) (*ledger.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	if _, dup := st.registered[enrollment]; dup && !m.unreachable && m.forcedRevert == "" {
		return nil, revert("Voter already registered")
	}
	res, err := m.mutate()
	if err != nil {
		return nil, err
	}
	st.registered[enrollment] = faceHash
	return res, nil
}

func (m *MockLedger) Vote(ctx context.Context, electionID uint64, enrollment string, faceHash [32]byte, candidateID uint64) (*ledger.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.elections[electionID]
	if !ok {
		return nil, revert("Election does not exist")
	}
	if !m.unreachable && m.forcedRevert == "" {
		if st.view.Phase != models.PhaseActive {
			return nil, revert("Election is not active")
		}
		committed, registered := st.registered[enrollment]
		if !registered {
			return nil, revert("Voter not registered")
		}
		if committed != faceHash {
			return nil, revert("Face hash mismatch")
		}
		if st.voted[enrollment] {
			return nil, revert("Voter has already voted")
		}
		if candidateID == 0 || candidateID > uint64(len(st.candidates)) {
			return nil, revert("Invalid candidate")
		}
	}
	res, err := m.mutate()
	if err != nil {
		return nil, err
	}

	st.voted[enrollment] = true
	st.candidates[candidateID-1].Votes++
	st.view.TotalVotes++

	m.receiptCounter++
	var tag [32]byte
	copy(tag[:], anonymizer.VisibleTag(anonymizer.EnrollmentHash(enrollment, electionID)))
	m.receipts[m.receiptCounter] = &ledger.ReceiptView{
		ReceiptID:  m.receiptCounter,
		ElectionID: electionID,
		VisibleTag: ledger.DecodeTag(tag),
		Timestamp:  uint64(time.Now().Unix()),
		Exists:     true,
	}
	if !m.suppressReceiptIDs {
		res.ReceiptID = m.receiptCounter
	}
	return res, nil
}
