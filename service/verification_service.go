package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"votechain-backend/anonymizer"
	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/storage"
)

// VerificationService answers "was my vote recorded" questions. The ledger
// is authoritative; the local receipt cache is the fallback when the ledger
// is unreachable or has lost sight of a receipt the backend once confirmed.
type VerificationService struct {
	reader  LedgerReader
	store   *storage.Store
	metrics *MetricsCollector
	logger  *slog.Logger
}

func NewVerificationService(reader LedgerReader, store *storage.Store, metrics *MetricsCollector, logger *slog.Logger) *VerificationService {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		reader:  reader,
		store:   store,
		metrics: metrics,
		logger:  logger.With("component", "verification"),
	}
}

// VerificationResult reports the outcome of a receipt check and which source
// produced it.
type VerificationResult struct {
	Verified bool                `json:"verified"`
	Source   string              `json:"source"`
	Message  string              `json:"message"`
	Ledger   *ledger.ReceiptView `json:"ledger,omitempty"`
	Cached   *models.VoteReceipt `json:"cached,omitempty"`
}

// VerifyReceipt checks a receipt against the ledger, falling back to the
// local cache when the ledger cannot answer or disagrees with a receipt this
// backend confirmed.
func (vf *VerificationService) VerifyReceipt(ctx context.Context, receiptID uint64) (*VerificationResult, error) {
	started := time.Now()
	defer func() { vf.metrics.RecordVerification(time.Since(started)) }()

	if receiptID == 0 {
		return nil, models.NewError(models.ErrValidation, "Receipt id required")
	}

	cached, cerr := vf.store.ReceiptByID(receiptID)
	if cerr != nil && !models.IsKind(cerr, models.ErrNotFound) {
		return nil, cerr
	}

	view, lerr := vf.reader.VoteReceipt(ctx, receiptID)
	if lerr != nil {
		// Any failed ledger read falls back to the cache, contract
		// rejections included. A receipt this backend confirmed stays
		// verifiable while the ledger cannot answer for it.
		if cached == nil {
			return nil, lerr
		}
		vf.logger.Warn("ledger lookup failed, answering from cache",
			"receipt", receiptID,
			"error", lerr,
		)
		return &VerificationResult{
			Verified: true,
			Source:   "cache",
			Message:  "Ledger unavailable. Receipt confirmed from local records.",
			Cached:   cached,
		}, nil
	}

	if !view.Exists {
		if cached == nil {
			return nil, models.NewError(models.ErrNotFound, "Receipt not found")
		}
		// The backend confirmed this receipt once; the ledger no longer
		// reports it. Answer from the cache and flag the divergence.
		vf.logger.Warn("receipt missing on ledger but present in cache",
			"receipt", receiptID,
			"tx", cached.TxHash,
		)
		return &VerificationResult{
			Verified: true,
			Source:   "cache",
			Message:  "Receipt not found on the ledger but confirmed in local records.",
			Cached:   cached,
		}, nil
	}

	return &VerificationResult{
		Verified: true,
		Source:   "ledger",
		Message:  "Receipt confirmed on the ledger.",
		Ledger:   view,
		Cached:   cached,
	}, nil
}

// FindReceipt locates a voter's receipt for an election from their
// enrollment number. The exact flag is false when only the hash-only
// fallback matched, meaning the row predates per-election indexing.
func (vf *VerificationService) FindReceipt(enrollment string, electionID uint64) (*models.VoteReceipt, bool, error) {
	if strings.TrimSpace(enrollment) == "" {
		return nil, false, models.NewError(models.ErrValidation, "Enrollment number required")
	}
	if electionID == 0 {
		return nil, false, models.NewError(models.ErrValidation, "Election id required")
	}
	hash := anonymizer.EnrollmentHash(enrollment, electionID)
	return vf.store.ReceiptByEnrollmentHash(hash, electionID)
}
