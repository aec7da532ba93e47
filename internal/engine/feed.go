package engine

import (
	"fmt"
	"time"

	"github.com/patinahq/patina/internal/store"
)

// SlowFeed returns the ranked view of content whose stakes settled
// favorably within the window. The ranking is recomputed in full on every
// call; no state is carried between calls.
func (e *Engine) SlowFeed(sinceDaysAgo int) ([]store.ContentSummary, error) {
	cutoff := time.Now().AddDate(0, 0, -sinceDaysAgo).UnixMilli()
	return e.DB.SlowFeed(cutoff, e.maturityThreshold)
}

// StakeView pairs a stake with its current estimated ROI: the content's
// last persisted quality score over the staked amount. For settled stakes
// the recorded ROI is reported instead.
type StakeView struct {
	Stake        store.Stake
	EstimatedROI float64
}

// UserStakes returns all of a user's stakes with current ROI estimates.
func (e *Engine) UserStakes(userID string) ([]StakeView, error) {
	stakes, err := e.DB.StakesByUser(userID)
	if err != nil {
		return nil, err
	}

	views := make([]StakeView, 0, len(stakes))
	for _, s := range stakes {
		view := StakeView{Stake: s}
		if s.Status == store.StakeActive {
			content, err := e.DB.GetContentByID(s.ContentID)
			if err != nil {
				return nil, fmt.Errorf("content for stake %s: %w", s.ID, err)
			}
			if content != nil && s.Amount > 0 {
				view.EstimatedROI = content.QualityScore / s.Amount
			}
		} else {
			view.EstimatedROI = s.ROI
		}
		views = append(views, view)
	}
	return views, nil
}

// IsSuppressed evaluates the noise filter for a content reference using a
// discovery-feed snapshot of likes and age. Unknown or never-scored content
// fails open.
func (e *Engine) IsSuppressed(externalRef string, likesCount int, ageMinutes float64) (bool, error) {
	content, err := e.DB.GetContentByRef(externalRef)
	if err != nil {
		return false, err
	}
	if content == nil || content.ScoredAt == nil {
		return e.Filter.ShouldSuppress(likesCount, ageMinutes, 0, false), nil
	}
	return e.Filter.ShouldSuppress(likesCount, ageMinutes, content.QualityScore, true), nil
}
