package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/claims-cli/internal/model"
)

// Batch item statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// BatchItem is the outcome of one claim in a batch, reported at the claim's
// input position.
type BatchItem struct {
	Index       int             `json:"index"`
	ClaimNumber string          `json:"claim_number"`
	Status      string          `json:"status"`
	Bundle      *model.Bundle   `json:"bundle,omitempty"`
	ErrorKind   model.ErrorKind `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	Err         error           `json:"-"`
}

// RunBatch runs every claim with at most Options.MaxConcurrent in flight.
// A failed claim never stops its siblings. With a BatchRecorder the
// successful decisions are saved together once the batch finishes; any other
// Recorder saves each claim as it completes.
func (p *Pipeline) RunBatch(ctx context.Context, raws []map[string]any) []BatchItem {
	items := make([]BatchItem, len(raws))
	if len(raws) == 0 {
		zap.L().Info("pipeline: empty batch")
		return items
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("claims", len(raws)),
		zap.Int("concurrency", p.opts.MaxConcurrent),
	)

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrent)

	batchRec, bulk := p.recorder.(BatchRecorder)
	recs := make([]*model.DecisionRecord, len(raws))

	var succeeded, failed atomic.Int64

	for i, raw := range raws {
		g.Go(func() error {
			item := BatchItem{Index: i}
			var bundle *model.Bundle
			claim, err := model.ParseClaim(raw)
			if err == nil {
				if bulk {
					var rec model.DecisionRecord
					if rec, err = p.execute(ctx, claim); err == nil {
						recs[i] = &rec
						bundle = &rec.Bundle
					}
				} else {
					bundle, err = p.Run(ctx, claim)
				}
			}
			if err != nil {
				failed.Add(1)
				item.Status = StatusFailed
				item.ClaimNumber = model.ClaimNumberOf(err)
				item.ErrorKind = model.KindOf(err)
				item.Error = err.Error()
				item.Err = err
				zap.L().Error("pipeline: batch claim failed",
					zap.Int("index", i),
					zap.String("claim", item.ClaimNumber),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
				item.Status = StatusOK
				item.ClaimNumber = bundle.Decision.ClaimNumber
				item.Bundle = bundle
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	if bulk {
		p.saveBatch(ctx, batchRec, recs)
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return items
}

func (p *Pipeline) saveBatch(ctx context.Context, r BatchRecorder, recs []*model.DecisionRecord) {
	batch := make([]model.DecisionRecord, 0, len(recs))
	for _, rec := range recs {
		if rec != nil {
			batch = append(batch, *rec)
		}
	}
	if len(batch) == 0 {
		return
	}
	n, err := r.SaveDecisions(ctx, batch)
	if err != nil {
		zap.L().Warn("pipeline: failed to record batch decisions",
			zap.Int("decisions", len(batch)),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("pipeline: batch decisions recorded", zap.Int("decisions", n))
}

// Summarize counts successful and failed items.
func Summarize(items []BatchItem) (ok, failed int) {
	for _, it := range items {
		if it.Status == StatusOK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
