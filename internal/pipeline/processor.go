package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/extract"
	"github.com/corpuslab/tokenmill/internal/metrics"
	"github.com/corpuslab/tokenmill/internal/store"
	"github.com/corpuslab/tokenmill/internal/volume"
)

// PathResolver maps a volume id to its feature-file path.
type PathResolver func(id string) (string, error)

// TrimPolicy is the asymmetric sparse-token trim applied to the corpus
// table: tokens of the dominant Language with a batch-local count below
// MinCount are dropped before the append. Other languages are never
// trimmed, so sparse-language tokens survive even at count 1. An empty
// Language disables the trim.
type TrimPolicy struct {
	Language string
	MinCount int64
}

// BatchAppender is the store write surface the processor needs: one
// transactional append of both tables. *store.Store implements it.
type BatchAppender interface {
	AppendBatch(docs []store.DocRow, corpus []store.CorpusRow) error
}

// Processor handles one batch at a time for one worker: decode each
// volume, extract its token table, and append the combined batch output
// to the worker's store in a single transactional part.
type Processor struct {
	dec     volume.Decoder
	store   BatchAppender
	pathFor PathResolver
	trim    TrimPolicy
	log     *zap.Logger
	metrics *metrics.Set // may be nil
}

// NewProcessor creates a batch processor bound to one worker's store.
func NewProcessor(
	dec volume.Decoder, st BatchAppender, pathFor PathResolver,
	trim TrimPolicy, log *zap.Logger, m *metrics.Set,
) *Processor {
	return &Processor{
		dec: dec, store: st, pathFor: pathFor,
		trim: trim, log: log, metrics: m,
	}
}

// Process runs one batch. Per-item failures (unresolvable id, decode
// error) are logged and skipped; a single bad input never aborts the
// batch. The returned done list holds the ids whose output durably landed
// in both tables; on a store-append failure it is empty and the whole
// batch is left for a future run. failed counts the skipped items.
// A batch always runs to completion once started: shutdown stops the
// dispatcher from submitting, not a batch from finishing.
func (p *Processor) Process(_ context.Context, ids []string) (done []string, failed int, err error) {
	var batch extract.Table
	processed := make([]string, 0, len(ids))

	for _, id := range ids {
		table, ok := p.processItem(id)
		if !ok {
			failed++
			continue
		}
		batch = append(batch, table...)
		processed = append(processed, id)
	}

	docs := docRows(batch)
	corpus := corpusRows(batch, p.trim)

	start := time.Now()
	if err := p.store.AppendBatch(docs, corpus); err != nil {
		p.log.Error("batch append failed, batch withheld from checkpoint",
			zap.Int("volumes", len(processed)),
			zap.Error(err),
		)
		if p.metrics != nil {
			p.metrics.BatchesFailed.Inc()
		}
		return nil, failed, err
	}

	if p.metrics != nil {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		p.metrics.VolumesProcessed.Add(float64(len(processed)))
		p.metrics.RowsWritten.WithLabelValues("docs").Add(float64(len(docs)))
		p.metrics.RowsWritten.WithLabelValues("corpus").Add(float64(len(corpus)))
	}
	return processed, failed, nil
}

// processItem decodes and extracts one volume. Returns ok=false when the
// item must be skipped.
func (p *Processor) processItem(id string) (extract.Table, bool) {
	if len(id) > store.MaxIDBytes {
		p.log.Warn("volume id exceeds store width, skipping",
			zap.String("volume", id),
		)
		p.countFailure("oversize_id")
		return nil, false
	}
	path, err := p.pathFor(id)
	if err != nil {
		p.log.Warn("cannot resolve volume path, skipping",
			zap.String("volume", id),
			zap.Error(err),
		)
		p.countFailure("bad_id")
		return nil, false
	}
	vol, err := p.dec.Decode(path)
	if err != nil {
		p.log.Warn("decode failed, skipping",
			zap.String("volume", id),
			zap.Error(err),
		)
		p.countFailure("decode")
		return nil, false
	}
	table := extract.Extract(vol)
	if len(table) == 0 {
		// Empty token listing: done, contributes no rows.
		p.log.Debug("empty volume", zap.String("volume", id))
		if p.metrics != nil {
			p.metrics.VolumesEmpty.Inc()
		}
	}
	return table, true
}

func (p *Processor) countFailure(reason string) {
	if p.metrics != nil {
		p.metrics.VolumesFailed.WithLabelValues(reason).Inc()
	}
}

// docRows projects the batch table onto the per-volume store schema.
func docRows(batch extract.Table) []store.DocRow {
	rows := make([]store.DocRow, 0, len(batch))
	for _, r := range batch {
		rows = append(rows, store.DocRow{
			VolumeID: r.VolumeID,
			Token:    r.Token,
			Count:    r.Count,
		})
	}
	return rows
}

// corpusRows groups the batch table by (language, token), sums counts and
// applies the trim policy.
func corpusRows(batch extract.Table, trim TrimPolicy) []store.CorpusRow {
	type key struct{ lang, token string }
	sums := make(map[key]int64, len(batch))
	for _, r := range batch {
		sums[key{r.Language, r.Token}] += r.Count
	}

	rows := make([]store.CorpusRow, 0, len(sums))
	for k, n := range sums {
		if trim.Language != "" && k.lang == trim.Language && n < trim.MinCount {
			continue
		}
		rows = append(rows, store.CorpusRow{Language: k.lang, Token: k.token, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Language != rows[j].Language {
			return rows[i].Language < rows[j].Language
		}
		return rows[i].Token < rows[j].Token
	})
	return rows
}
