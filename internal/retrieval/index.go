package retrieval

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS policy_sections USING fts5(
	doc_id UNINDEXED,
	source UNINDEXED,
	heading,
	body
);
`

// Index searches policy sections stored in a SQLite FTS5 table. Queries that
// fail or match nothing are answered by the keyword corpus.
type Index struct {
	db       *sql.DB
	fallback Service
}

// OpenIndex opens an existing policy index. It fails when the file is
// missing or has never been loaded.
func OpenIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrap(err, "retrieval: stat index")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: open index")
	}
	var n int
	err = db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'policy_sections'`).Scan(&n)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "retrieval: inspect index")
	}
	if n == 0 {
		db.Close() //nolint:errcheck
		return nil, eris.Errorf("retrieval: %s has no policy_sections table", path)
	}
	return &Index{db: db, fallback: Keyword{}}, nil
}

// CreateIndex opens or creates a policy index for loading.
func CreateIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: open index")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "retrieval: exec %s", pragma)
		}
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "retrieval: create schema")
	}
	return &Index{db: db, fallback: Keyword{}}, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Retrieve returns up to topK sections ranked by bm25.
func (x *Index) Retrieve(ctx context.Context, query string, topK int) Result {
	if topK <= 0 {
		topK = 3
	}
	match := ftsQuery(query)
	if match == "" {
		return x.fallback.Retrieve(ctx, query, topK)
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT doc_id, heading, body FROM policy_sections
		 WHERE policy_sections MATCH ?
		 ORDER BY bm25(policy_sections)
		 LIMIT ?`,
		match, topK,
	)
	if err != nil {
		zap.L().Warn("retrieval: index query failed, using keyword corpus", zap.String("query", query), zap.Error(err))
		return x.fallback.Retrieve(ctx, query, topK)
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var id, heading, body string
		if err := rows.Scan(&id, &heading, &body); err != nil {
			zap.L().Warn("retrieval: scan section", zap.Error(err))
			continue
		}
		docs = append(docs, Document{ID: id, Text: heading + "\n" + body})
	}
	if err := rows.Err(); err != nil || len(docs) == 0 {
		return x.fallback.Retrieve(ctx, query, topK)
	}
	return Result{Documents: docs}
}

// Load replaces every section previously loaded from source with the
// sections of the markdown document read from r. It returns the number of
// sections stored.
func (x *Index) Load(ctx context.Context, source string, r io.Reader) (int, error) {
	sections, err := SplitSections(r)
	if err != nil {
		return 0, err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "retrieval: begin load")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM policy_sections WHERE source = ?`, source); err != nil {
		return 0, eris.Wrapf(err, "retrieval: clear source %s", source)
	}
	for i, s := range sections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO policy_sections (doc_id, source, heading, body) VALUES (?, ?, ?, ?)`,
			fmt.Sprintf("%s#%d", source, i+1), source, s.Heading, s.Body,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "retrieval: insert section %q", s.Heading)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "retrieval: commit load")
	}
	return len(sections), nil
}

// Count returns the number of indexed sections.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT count(*) FROM policy_sections`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "retrieval: count sections")
	}
	return n, nil
}

// Section is a headed passage of a policy document.
type Section struct {
	Heading string
	Body    string
}

// SplitSections splits a markdown document on heading lines. Text before the
// first heading and headings without a body are dropped.
func SplitSections(r io.Reader) ([]Section, error) {
	var (
		sections []Section
		current  *Section
		body     []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Body != "" {
			sections = append(sections, *current)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
			current = &Section{Heading: strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))}
			body = body[:0]
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "retrieval: read policy document")
	}
	flush()
	return sections, nil
}

var (
	termPattern = regexp.MustCompile(`[a-z0-9]+`)
	stopWords   = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "from": true,
		"that": true, "this": true, "are": true, "was": true, "any": true,
		"what": true, "how": true, "does": true, "into": true, "under": true,
	}
)

// ftsQuery turns free text into an FTS5 OR query of quoted terms.
func ftsQuery(query string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range termPattern.FindAllString(strings.ToLower(query), -1) {
		if len(t) < 3 || stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, `"`+t+`"`)
	}
	return strings.Join(terms, " OR ")
}
