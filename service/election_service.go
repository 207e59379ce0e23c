package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/storage"
)

// ElectionService owns the election lifecycle: administrative mutations,
// effective-phase resolution, and candidate listing with the local results
// visibility policy applied.
type ElectionService struct {
	reader LedgerReader
	writer LedgerWriter
	store  *storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewElectionService(reader LedgerReader, writer LedgerWriter, store *storage.Store, logger *slog.Logger) *ElectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElectionService{
		reader: reader,
		writer: writer,
		store:  store,
		logger: logger.With("component", "elections"),
		now:    time.Now,
	}
}

// ElectionDetail merges the authoritative ledger view with the local policy
// fields and the effective phase.
type ElectionDetail struct {
	ledger.ElectionView
	Phase         string     `json:"phase"`
	IsLiveResults bool       `json:"is_live_results"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// CreateElection writes the election to the ledger, then caches the local
// row carrying the policy flags. The cache write happens only after
// confirmation; a cache failure at that point is logged, not surfaced,
// since the row is rebuildable from the ledger.
func (es *ElectionService) CreateElection(ctx context.Context, name, description string, isLiveResults bool, expiresAt *time.Time) (uint64, string, error) {
	if strings.TrimSpace(name) == "" {
		return 0, "", models.NewError(models.ErrValidation, "Election name required")
	}

	res, err := es.writer.CreateElection(ctx, name, description)
	if err != nil {
		return 0, "", err
	}

	electionID := res.ElectionID
	if electionID == 0 {
		// No ElectionCreated event in the confirmation logs. Reading the
		// count afterwards can misattribute the id if another create
		// confirms in between; the event path above avoids that.
		electionID, err = es.reader.ElectionCount(ctx)
		if err != nil {
			return 0, "", err
		}
	}

	row := &models.Election{
		BlockchainID:  electionID,
		Name:          name,
		Description:   description,
		Phase:         models.PhaseCreated.String(),
		IsLiveResults: isLiveResults,
		ExpiresAt:     expiresAt,
	}
	if err := es.store.UpsertElection(row); err != nil {
		es.logger.Error("failed to cache new election", "election", electionID, "error", err)
	}

	return electionID, res.TxHash, nil
}

func (es *ElectionService) AddCandidate(ctx context.Context, electionID uint64, name string) (string, error) {
	if electionID == 0 {
		return "", models.NewError(models.ErrValidation, "Election id required")
	}
	if strings.TrimSpace(name) == "" {
		return "", models.NewError(models.ErrValidation, "Candidate name required")
	}
	res, err := es.writer.AddCandidate(ctx, electionID, name)
	if err != nil {
		return "", err
	}
	return res.TxHash, nil
}

func (es *ElectionService) StartElection(ctx context.Context, electionID uint64) (string, error) {
	res, err := es.writer.StartElection(ctx, electionID)
	if err != nil {
		return "", err
	}
	es.mirrorPhase(ctx, electionID, models.PhaseActive)
	return res.TxHash, nil
}

func (es *ElectionService) EndElection(ctx context.Context, electionID uint64) (string, error) {
	res, err := es.writer.EndElection(ctx, electionID)
	if err != nil {
		return "", err
	}
	es.mirrorPhase(ctx, electionID, models.PhaseEnded)
	return res.TxHash, nil
}

func (es *ElectionService) DeclareResults(ctx context.Context, electionID uint64) (string, error) {
	res, err := es.writer.DeclareResults(ctx, electionID)
	if err != nil {
		return "", err
	}
	es.mirrorPhase(ctx, electionID, models.PhaseResultDeclared)
	return res.TxHash, nil
}

// mirrorPhase advances the cached phase after a confirmed transition. A
// missing cache row is rebuilt from the ledger instead of erroring.
func (es *ElectionService) mirrorPhase(ctx context.Context, electionID uint64, phase models.Phase) {
	err := es.store.AdvancePhase(electionID, phase, es.now())
	if err == nil {
		return
	}
	if !models.IsKind(err, models.ErrNotFound) {
		es.logger.Error("failed to mirror phase", "election", electionID, "phase", phase.String(), "error", err)
		return
	}

	view, lerr := es.reader.Election(ctx, electionID)
	if lerr != nil {
		es.logger.Error("cannot rebuild cache row", "election", electionID, "error", lerr)
		return
	}
	now := es.now()
	row := &models.Election{
		BlockchainID:  view.ID,
		Name:          view.Name,
		Description:   view.Description,
		Phase:         phase.String(),
		IsLiveResults: true,
	}
	if phase == models.PhaseActive {
		row.StartedAt = &now
	}
	if phase == models.PhaseEnded {
		row.EndedAt = &now
	}
	if err := es.store.UpsertElection(row); err != nil {
		es.logger.Error("failed to rebuild cache row", "election", electionID, "error", err)
	}
}

// EffectivePhase resolves the phase voters and gates see. The ledger enum is
// always consulted first; only the derived EXPIRED override is local. A
// ledger failure propagates so callers fail closed.
func (es *ElectionService) EffectivePhase(ctx context.Context, electionID uint64) (models.Phase, error) {
	phase, err := es.reader.ElectionPhase(ctx, electionID)
	if err != nil {
		return 0, err
	}
	if phase != models.PhaseActive {
		return phase, nil
	}

	row, err := es.store.ElectionByBlockchainID(electionID)
	if err != nil {
		if !models.IsKind(err, models.ErrNotFound) {
			es.logger.Warn("cannot read expiry deadline", "election", electionID, "error", err)
		}
		return phase, nil
	}
	if row.ExpiresAt != nil && es.now().After(*row.ExpiresAt) {
		return models.PhaseExpired, nil
	}
	return phase, nil
}

// GetElection returns the merged ledger + cache view of one election.
func (es *ElectionService) GetElection(ctx context.Context, electionID uint64) (*ElectionDetail, error) {
	view, err := es.reader.Election(ctx, electionID)
	if err != nil {
		return nil, err
	}
	row, err := es.store.ElectionByBlockchainID(electionID)
	if err != nil && !models.IsKind(err, models.ErrNotFound) {
		return nil, err
	}
	return es.merge(view, row), nil
}

// ListElections returns the merged view of every election on the ledger.
func (es *ElectionService) ListElections(ctx context.Context) ([]*ElectionDetail, error) {
	count, err := es.reader.ElectionCount(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := es.store.Elections()
	if err != nil {
		es.logger.Warn("cannot load election cache", "error", err)
		cached = nil
	}

	out := make([]*ElectionDetail, 0, count)
	for id := uint64(1); id <= count; id++ {
		view, err := es.reader.Election(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, es.merge(view, cached[id]))
	}
	return out, nil
}

func (es *ElectionService) merge(view *ledger.ElectionView, row *models.Election) *ElectionDetail {
	detail := &ElectionDetail{
		ElectionView:  *view,
		Phase:         view.Phase.String(),
		IsLiveResults: true,
	}
	if row != nil {
		detail.IsLiveResults = row.IsLiveResults
		detail.ExpiresAt = row.ExpiresAt
		if view.Phase == models.PhaseActive && row.ExpiresAt != nil && es.now().After(*row.ExpiresAt) {
			detail.Phase = models.PhaseExpired.String()
		}
	}
	return detail
}

// ListCandidates returns the candidates of an election. When live results
// are disabled and results are not yet declared, tallies are zeroed in the
// response; the response shape is identical either way.
func (es *ElectionService) ListCandidates(ctx context.Context, electionID uint64) ([]*ledger.CandidateView, error) {
	view, err := es.reader.Election(ctx, electionID)
	if err != nil {
		return nil, err
	}

	isLive := true
	if row, err := es.store.ElectionByBlockchainID(electionID); err == nil {
		isLive = row.IsLiveResults
	}
	hideResults := !isLive && view.Phase != models.PhaseResultDeclared

	candidates := make([]*ledger.CandidateView, 0, view.CandidateCount)
	for id := uint64(1); id <= view.CandidateCount; id++ {
		c, err := es.reader.Candidate(ctx, electionID, id)
		if err != nil {
			return nil, err
		}
		if hideResults {
			c.Votes = 0
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
