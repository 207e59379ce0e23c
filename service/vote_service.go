package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"votechain-backend/anonymizer"
	"votechain-backend/biometric"
	"votechain-backend/models"
	"votechain-backend/storage"
)

// VoteService handles voter registration and vote casting. Both paths end in
// a ledger mutation; the local rows written afterwards are cache only and
// never gate the outcome once the ledger has confirmed.
type VoteService struct {
	reader    LedgerReader
	writer    LedgerWriter
	store     *storage.Store
	elections *ElectionService
	verifier  biometric.Verifier
	metrics   *MetricsCollector
	logger    *slog.Logger
}

func NewVoteService(
	reader LedgerReader,
	writer LedgerWriter,
	store *storage.Store,
	elections *ElectionService,
	verifier biometric.Verifier,
	metrics *MetricsCollector,
	logger *slog.Logger,
) *VoteService {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VoteService{
		reader:    reader,
		writer:    writer,
		store:     store,
		elections: elections,
		verifier:  verifier,
		metrics:   metrics,
		logger:    logger.With("component", "votes"),
	}
}

// VoteOutcome is what a voter takes away from a successful vote. The visible
// tag is the only piece they need to later find their receipt.
type VoteOutcome struct {
	ReceiptID   uint64 `json:"receipt_id"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	VisibleTag  string `json:"visible_tag"`
}

// RegisterVoter enrolls a voter for one election. A returning voter must
// present a face sample matching the stored template; a new voter has a
// template encoded and stored. The commitment sent to the ledger is always
// the digest of the stored template so it stays stable across elections.
func (vs *VoteService) RegisterVoter(ctx context.Context, electionID uint64, enrollment, name string, faceSample []byte) (string, error) {
	started := time.Now()

	if electionID == 0 {
		return "", models.NewError(models.ErrValidation, "Election id required")
	}
	if strings.TrimSpace(enrollment) == "" {
		return "", models.NewError(models.ErrValidation, "Enrollment number required")
	}
	if len(faceSample) == 0 {
		return "", models.NewError(models.ErrValidation, "Face image required")
	}

	phase, err := vs.elections.EffectivePhase(ctx, electionID)
	if err != nil {
		return "", err
	}
	if phase == models.PhaseExpired {
		return "", models.Errorf(models.ErrPhaseGate, "registration not allowed. election phase: %s", phase)
	}

	var template biometric.Template
	voter, err := vs.store.VoterByEnrollment(enrollment)
	switch {
	case err == nil:
		template = biometric.DecodeTemplate(voter.FaceEncoding)
		ok, merr := vs.verifier.Matches(template, faceSample)
		if merr != nil {
			return "", models.WrapError(models.ErrValidation, "Face could not be processed", merr)
		}
		if !ok {
			return "", models.NewError(models.ErrValidation, "Face mismatch")
		}
		if _, rerr := vs.store.RegistrationFor(voter.ID, electionID); rerr == nil {
			return "", models.NewError(models.ErrAlreadyActed, "Voter already registered for this election")
		} else if !models.IsKind(rerr, models.ErrNotFound) {
			return "", rerr
		}
	case models.IsKind(err, models.ErrNotFound):
		template, err = vs.verifier.Encode(faceSample)
		if err != nil {
			return "", models.WrapError(models.ErrValidation, "Face could not be processed", err)
		}
		voter = nil
	default:
		return "", err
	}

	res, err := vs.writer.RegisterVoter(ctx, electionID, enrollment, biometric.DigestBytes32(template))
	if err != nil {
		return "", err
	}

	if voter == nil {
		voter = &models.Voter{
			Enrollment:   enrollment,
			Name:         name,
			FaceEncoding: template.Bytes(),
		}
		if cerr := vs.store.CreateVoter(voter); cerr != nil {
			vs.logger.Error("failed to cache voter", "enrollment", enrollment, "error", cerr)
		}
	}
	reg := &models.VoterElectionRegistration{
		VoterID:    voter.ID,
		ElectionID: electionID,
		Enrollment: enrollment,
		FaceHash:   biometric.Digest(template),
	}
	if cerr := vs.store.CreateRegistration(reg); cerr != nil {
		vs.logger.Error("failed to cache registration", "enrollment", enrollment, "election", electionID, "error", cerr)
	}

	vs.metrics.RecordRegistration(time.Since(started))
	vs.logger.Info("voter registered", "election", electionID, "tx", res.TxHash)
	return res.TxHash, nil
}

// CastVote verifies the voter, submits the vote, and records the local
// receipt row. The phase gate runs on the effective phase, so an expired
// election rejects votes even while the ledger still reports it active.
func (vs *VoteService) CastVote(ctx context.Context, electionID uint64, enrollment string, faceSample []byte, candidateID uint64) (*VoteOutcome, error) {
	started := time.Now()

	if electionID == 0 {
		return nil, models.NewError(models.ErrValidation, "Election id required")
	}
	if strings.TrimSpace(enrollment) == "" {
		return nil, models.NewError(models.ErrValidation, "Enrollment number required")
	}
	if len(faceSample) == 0 {
		return nil, models.NewError(models.ErrValidation, "Face image required")
	}
	if candidateID == 0 {
		return nil, models.NewError(models.ErrValidation, "Candidate id required")
	}

	phase, err := vs.elections.EffectivePhase(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if phase != models.PhaseActive {
		return nil, models.Errorf(models.ErrPhaseGate, "voting not allowed. election phase: %s", phase)
	}

	voter, err := vs.store.VoterByEnrollment(enrollment)
	if err != nil {
		if models.IsKind(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrValidation, "Voter not registered for this election")
		}
		return nil, err
	}
	reg, err := vs.store.RegistrationFor(voter.ID, electionID)
	if err != nil {
		if models.IsKind(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrValidation, "Voter not registered for this election")
		}
		return nil, err
	}
	if reg.HasVoted {
		return nil, models.NewError(models.ErrAlreadyActed, "You have already voted in this election")
	}

	template := biometric.DecodeTemplate(voter.FaceEncoding)
	ok, err := vs.verifier.Matches(template, faceSample)
	if err != nil {
		return nil, models.WrapError(models.ErrValidation, "Face could not be processed", err)
	}
	if !ok {
		return nil, models.NewError(models.ErrValidation, "Face mismatch")
	}

	res, err := vs.writer.Vote(ctx, electionID, enrollment, biometric.DigestBytes32(template), candidateID)
	if err != nil {
		return nil, err
	}

	receiptID := res.ReceiptID
	if receiptID == 0 {
		// The VoteCast event was not decodable from the logs. The counter
		// read happens after confirmation and outside the submitter worker,
		// so a vote confirming in between would shift it; best effort only.
		counter, cerr := vs.reader.GlobalReceiptCounter(ctx)
		if cerr != nil {
			vs.logger.Warn("cannot resolve receipt id", "tx", res.TxHash, "error", cerr)
		} else {
			vs.logger.Warn("receipt id resolved from global counter", "tx", res.TxHash, "receipt", counter)
			receiptID = counter
		}
	}

	hash := anonymizer.EnrollmentHash(enrollment, electionID)
	tag := anonymizer.VisibleTag(hash)
	if receiptID != 0 {
		row := &models.VoteReceipt{
			ReceiptID:      receiptID,
			ElectionID:     electionID,
			EnrollmentHash: hash,
			VisibleTag:     tag,
			TxHash:         res.TxHash,
			BlockNumber:    res.BlockNumber,
		}
		if cerr := vs.store.RecordReceipt(row); cerr != nil {
			vs.logger.Error("failed to cache receipt", "receipt", receiptID, "error", cerr)
		}
	}
	if cerr := vs.store.MarkVoted(voter.ID, electionID); cerr != nil {
		vs.logger.Error("failed to mark voter", "enrollment", enrollment, "election", electionID, "error", cerr)
	}

	vs.metrics.RecordVote(time.Since(started))
	vs.logger.Info("vote cast", "election", electionID, "receipt", receiptID, "tx", res.TxHash)
	return &VoteOutcome{
		ReceiptID:   receiptID,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		VisibleTag:  tag,
	}, nil
}
