package documents

type Outcome string

const (
	OutcomeApproveAll   Outcome = "APPROVE_ALL"
	OutcomeHasRejection Outcome = "HAS_REJECTION"
	OutcomeStillPending Outcome = "STILL_PENDING"
)

// AggregateReviews folds the reviews of one version into a cycle outcome.
// Superseded reviews belong to a closed cycle and are skipped. Reviews
// completed without a decision abstain. A single rejection wins; approval
// needs at least one approve and nothing left pending.
func AggregateReviews(reviews []Review) Outcome {
	approvals := 0
	pending := 0
	for _, review := range reviews {
		if review.Superseded {
			continue
		}
		if review.Decision == nil {
			if !review.IsCompleted {
				pending++
			}
			continue
		}
		switch *review.Decision {
		case DecisionReject:
			return OutcomeHasRejection
		case DecisionApprove:
			approvals++
		}
	}
	if pending > 0 || approvals == 0 {
		return OutcomeStillPending
	}
	return OutcomeApproveAll
}

// CycleReviews keeps the reviews that belong to the given review cycle.
func CycleReviews(reviews []Review, cycle int) []Review {
	out := make([]Review, 0, len(reviews))
	for _, review := range reviews {
		if review.Cycle == cycle {
			out = append(out, review)
		}
	}
	return out
}

// OpenReviews returns the reviews of a cycle that are not yet completed.
func OpenReviews(reviews []Review) []Review {
	out := make([]Review, 0, len(reviews))
	for _, review := range reviews {
		if !review.IsCompleted {
			out = append(out, review)
		}
	}
	return out
}
