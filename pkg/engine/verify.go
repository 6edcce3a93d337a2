package engine

import (
	"context"
	"fmt"

	"github.com/ustahub/chatsync/pkg/syncerrors"
)

// VerifyResult is the outcome of a count comparison between the two stores.
type VerifyResult struct {
	SourceCount int64 `json:"source_count"`
	ChatCount   int64 `json:"chat_count"`
	Difference  int64 `json:"difference"`
	Tolerance   int64 `json:"tolerance"`
	Consistent  bool  `json:"consistent"`
}

// Verify compares the eligible source count against the chat store count.
// The stores are consistent when the absolute difference is within the
// configured tolerance; small transient drift between two non-atomic counts
// is expected.
func (e *Engine) Verify(ctx context.Context) (*VerifyResult, error) {
	sourceCount, err := e.source.CountActive(ctx)
	if err != nil {
		e.RecordError(ctx, syncerrors.New(syncerrors.TypeVerify, err))
		return nil, fmt.Errorf("failed to count source users: %w", err)
	}
	chatCount, err := e.chat.Count(ctx)
	if err != nil {
		e.RecordError(ctx, syncerrors.New(syncerrors.TypeVerify, err))
		return nil, fmt.Errorf("failed to count chat users: %w", err)
	}

	diff := sourceCount - chatCount
	if diff < 0 {
		diff = -diff
	}
	res := &VerifyResult{
		SourceCount: sourceCount,
		ChatCount:   chatCount,
		Difference:  diff,
		Tolerance:   e.cfg.Sync.VerifyTolerance,
		Consistent:  diff <= e.cfg.Sync.VerifyTolerance,
	}
	return res, nil
}
