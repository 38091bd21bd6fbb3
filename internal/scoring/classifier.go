package scoring

import "github.com/VictorQ-I/SMAF-BACKEND/internal/domain"

// RiskLevelFromScore maps a fraud score to its coarse risk bucket.
// Its 0.4/0.7 thresholds are independent of the approval thresholds
// below and must stay separate.
func RiskLevelFromScore(score float64) domain.RiskLevel {
	switch {
	case score >= 0.7:
		return domain.RiskHigh
	case score >= 0.4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// StatusFromScore maps a fraud score to an approval status for the
// processing flow. A score of exactly 0.7 is rejected here.
func StatusFromScore(score float64) domain.TransactionStatus {
	switch {
	case score >= 0.7:
		return domain.StatusRejected
	case score >= 0.3:
		return domain.StatusPending
	default:
		return domain.StatusApproved
	}
}

// StrictStatusFromScore maps a fraud score to an approval status for
// the direct creation flow. A score of exactly 0.7 stays pending here;
// the two mappings differ at that boundary and are kept separate on
// purpose.
func StrictStatusFromScore(score float64) domain.TransactionStatus {
	switch {
	case score < 0.3:
		return domain.StatusApproved
	case score > 0.7:
		return domain.StatusRejected
	default:
		return domain.StatusPending
	}
}
