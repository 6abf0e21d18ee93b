// Package retrieval finds policy text relevant to a query. Retrieval never
// fails: every backend degrades to the keyword corpus.
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/config"
)

// Document is one retrieved policy passage.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result holds the passages returned for a query, best match first.
type Result struct {
	Documents []Document `json:"documents"`
}

// Text joins the passages with blank lines.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		parts = append(parts, d.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Service retrieves policy passages.
type Service interface {
	Retrieve(ctx context.Context, query string, topK int) Result
}

// New builds the retrieval service described by cfg. The backend is fixed
// here: an FTS index when corpus_path names a readable index, the keyword
// corpus otherwise, wrapped in a TTL cache when cache_ttl_mins > 0. The
// returned close func releases the index.
func New(cfg config.RetrievalConfig) (Service, func() error) {
	var svc Service = Keyword{}
	closer := func() error { return nil }

	if cfg.CorpusPath != "" {
		idx, err := OpenIndex(cfg.CorpusPath)
		if err != nil {
			zap.L().Warn("retrieval: policy index unavailable, using keyword corpus",
				zap.String("corpus_path", cfg.CorpusPath),
				zap.Error(err),
			)
		} else {
			svc = idx
			closer = idx.Close
		}
	}

	if cfg.CacheTTLMins > 0 {
		svc = NewCached(svc, time.Duration(cfg.CacheTTLMins)*time.Minute)
	}
	return svc, closer
}
