package ledger

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"votechain-backend/models"
)

// GenericReason is returned when no revert reason can be extracted from a
// ledger error. Callers get this sentinel instead of transport internals.
const GenericReason = "Blockchain error"

var revertTextPattern = regexp.MustCompile(`(?i)revert(?:ed)?:?\s+(.+?)(?:'|"|$)`)

// RevertReason normalizes whatever shape the transport hands back into one
// flat reason string. Fallback order is fixed: structured error-data reason,
// then structured message, then a "revert <reason>" marker in the prose,
// then the generic sentinel.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason := reasonFromData(dataErr.ErrorData()); reason != "" {
			return reason
		}
	}

	if m := revertTextPattern.FindStringSubmatch(err.Error()); m != nil {
		if reason := strings.TrimSpace(m[1]); reason != "" {
			return reason
		}
	}

	return GenericReason
}

// reasonFromData digs a reason out of a structured error payload: either the
// ABI-encoded revert blob geth attaches, or the nested reason/message map a
// Ganache-style node returns.
func reasonFromData(data any) string {
	switch v := data.(type) {
	case string:
		blob, err := hexutil.Decode(v)
		if err != nil {
			return ""
		}
		reason, err := abi.UnpackRevert(blob)
		if err != nil {
			return ""
		}
		return reason
	case map[string]any:
		if s, ok := v["reason"].(string); ok && s != "" {
			return s
		}
		if s, ok := v["message"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ClassifyRevert maps a normalized revert reason onto the error taxonomy.
// Duplicate-action rejections get their own kind so callers can show a
// friendly message instead of a generic failure.
func ClassifyRevert(reason string) models.ErrorKind {
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "already voted") ||
		strings.Contains(lower, "already registered") {
		return models.ErrAlreadyActed
	}
	return models.ErrLedgerRejected
}

// isRevert reports whether err looks like a contract rejection rather than a
// transport failure.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}
