package processors

import "splitpay/internal/models"

// ReceiptStatusFrom recomputes a receipt's status from the full current set
// of its installments. Pure; callers re-read child rows before every call so
// concurrent deliveries converge on the same answer.
//
// Precedence: failed beats paid beats in-progress; with no signal the
// current status is kept. Canceled installments are excluded from the
// all-paid check, so a receipt whose remaining live installments are all
// paid-in counts as paid.
func ReceiptStatusFrom(current string, installments []models.Installment) string {
	anyFailed := false
	anyPaid := false
	allLivePaid := true
	live := 0
	for _, installment := range installments {
		switch installment.Status {
		case models.InstallmentFailed:
			anyFailed = true
			live++
			allLivePaid = false
		case models.InstallmentPaidIn, models.InstallmentPaidOut:
			anyPaid = true
			live++
		case models.InstallmentCanceled:
		default:
			live++
			allLivePaid = false
		}
	}
	switch {
	case anyFailed:
		return models.ReceiptFailed
	case live > 0 && allLivePaid:
		return models.ReceiptPaid
	case anyPaid:
		return models.ReceiptInProgress
	default:
		return current
	}
}

// DisputeStatusFrom recomputes a receipt's aggregate dispute status from all
// disputes on its installments.
func DisputeStatusFrom(disputes []models.Dispute) string {
	if len(disputes) == 0 {
		return models.DisputeAggNone
	}
	allOpen, allWon, allLost := true, true, true
	anyUnderReview := false
	for _, d := range disputes {
		if d.Status != models.DisputeNeedsResponse {
			allOpen = false
		}
		if d.Status == models.DisputeUnderReview {
			anyUnderReview = true
		}
		if d.Status != models.DisputeWon {
			allWon = false
		}
		if d.Status != models.DisputeLost {
			allLost = false
		}
	}
	switch {
	case allOpen:
		return models.DisputeAggOpen
	case anyUnderReview:
		return models.DisputeAggUnderReview
	case allWon:
		return models.DisputeAggWon
	case allLost:
		return models.DisputeAggLost
	default:
		return models.DisputeAggMixed
	}
}
