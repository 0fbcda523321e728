package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/invitewatch/internal/domain"
)

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("query must not be empty")

// SearchHit is one matched record.
type SearchHit struct {
	Record    domain.HistoryRecord
	Score     float64
	Fragments []string
}

// SearchResult is the outcome of a history search.
type SearchResult struct {
	Total uint64
	Hits  []SearchHit
}

// indexedRecord is the document shape stored in the index.
type indexedRecord struct {
	Code     string `json:"code"`
	Source   string `json:"source"`
	Kind     string `json:"kind"`
	Context  string `json:"context"`
	Notified string `json:"notified"`
}

func recordMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	for _, field := range []string{domain.RecordFieldCode, domain.RecordFieldSource, domain.RecordFieldKind, domain.RecordFieldNotified} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		doc.AddFieldMappingsAt(field, f)
	}

	ctx := bleve.NewTextFieldMapping()
	ctx.Analyzer = standard.Name
	ctx.Store = true
	ctx.IncludeTermVectors = true
	doc.AddFieldMappingsAt(domain.RecordFieldContext, ctx)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Search builds a throwaway in-memory index over records and runs query
// against the code and context fields. A non-empty source narrows the
// results to NOTE or COMMENT records.
func Search(records []domain.HistoryRecord, q string, source domain.Source, limit int) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}

	index, err := bleve.NewMemOnly(recordMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	defer func() { _ = index.Close() }()

	byCode := make(map[string]domain.HistoryRecord, len(records))
	batch := index.NewBatch()
	for _, r := range records {
		byCode[r.Code] = r
		if err := batch.Index(r.Code, indexedRecord{
			Code:     r.Code,
			Source:   string(r.Source),
			Kind:     string(r.Kind),
			Context:  r.Context,
			Notified: strconv.FormatBool(r.Notified),
		}); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", r.Code, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to index history: %w", err)
	}

	req := bleve.NewSearchRequest(buildQuery(q, source))
	req.Size = limit
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.RecordFieldContext)

	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &SearchResult{Total: res.Total}
	for _, hit := range res.Hits {
		r, ok := byCode[hit.ID]
		if !ok {
			continue
		}
		out.Hits = append(out.Hits, SearchHit{
			Record:    r,
			Score:     hit.Score,
			Fragments: hit.Fragments[domain.RecordFieldContext],
		})
	}
	return out, nil
}

func buildQuery(q string, source domain.Source) query.Query {
	contextQuery := bleve.NewMatchQuery(q)
	contextQuery.SetField(domain.RecordFieldContext)

	codeQuery := bleve.NewTermQuery(strings.ToUpper(q))
	codeQuery.SetField(domain.RecordFieldCode)
	codeQuery.SetBoost(5.0)

	search := bleve.NewDisjunctionQuery(contextQuery, codeQuery)
	if source == "" {
		return search
	}

	sourceQuery := bleve.NewTermQuery(strings.ToUpper(string(source)))
	sourceQuery.SetField(domain.RecordFieldSource)
	return bleve.NewConjunctionQuery(search, sourceQuery)
}
