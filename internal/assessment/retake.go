package assessment

import (
	"context"
	"fmt"
)

type RetakeOptions struct {
	// Reshuffle draws a fresh seed; otherwise the retake reuses the source
	// criteria verbatim, seed included, and reproduces its question set
	// while the bank is unchanged.
	Reshuffle bool `json:"reshuffle"`
}

// Retake creates the next attempt in the source session's lineage. Only a
// finished session can be retaken. The source is left untouched.
func (e *Engine) Retake(ctx context.Context, sessionID string, opts RetakeOptions) (RetakeResult, error) {
	src, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return RetakeResult{}, err
	}
	if !src.Status.Terminal() {
		return RetakeResult{}, illegal("retake", src.Status, "session is not finished")
	}

	// Attempt numbers are assigned under the lineage lock so concurrent
	// retakes of the same lineage get distinct numbers.
	unlock, err := e.locker.Lock(ctx, "lineage:"+src.LineageID)
	if err != nil {
		return RetakeResult{}, fmt.Errorf("lock lineage %s: %w", src.LineageID, err)
	}
	defer unlock()

	highest, err := e.store.MaxAttempt(ctx, src.LineageID)
	if err != nil {
		return RetakeResult{}, err
	}
	c := src.Criteria
	c.TopicIDs = append([]string(nil), src.Criteria.TopicIDs...)
	c.Levels = append([]string(nil), src.Criteria.Levels...)
	if opts.Reshuffle {
		prev := c.Seed
		for c.Seed == prev {
			c.Seed = e.seed()
		}
	}
	var limit *int
	if src.TimeLimitSec != nil {
		v := *src.TimeLimitSec
		limit = &v
	}

	s, err := e.create(ctx, draft{
		learnerID:    src.LearnerID,
		criteria:     c,
		mode:         src.Mode,
		timeLimitSec: limit,
		source:       src,
		attempt:      highest + 1,
	})
	if err != nil {
		return RetakeResult{}, err
	}
	return RetakeResult{NewSessionID: s.ID, NumberAttempts: s.AttemptNumber, Session: s}, nil
}
