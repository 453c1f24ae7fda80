// Package fulltext implements a BM25-scored full-text index (spec.md
// §4.6's SEARCH/BM25 index kind): an analyzer turns a field's text into
// tokens, a posting list per token tracks which records contain it and how
// often, and Search scores candidate documents with the Okapi BM25
// formula. The postings tree shape follows the pack's
// `surrealdb/core/idx/ft/postings` layout (named in
// `_examples/original_source/_INDEX.md`) and the per-document length
// bookkeeping follows `steveyegge/beads`'s storage package; BM25 itself has
// no ecosystem package in the pack, so scoring is hand-rolled arithmetic.
package fulltext

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/keys"
	"github.com/forbearing/stratadb/kv"
	"github.com/forbearing/stratadb/value"
)

// docLenToken and statsToken are reserved posting "values" that can never
// collide with a real token (tokens are lowercase letters/digits only),
// used to smuggle per-document length and index-wide aggregate stats
// through the same IndexEntry keyspace as ordinary postings.
const (
	docLenToken = "\x01doclen"
	statsToken  = "\x01stats"
)

// Analyze tokenizes text into lowercase word tokens of letters and digits
// (accented letters are kept as they are, not ASCII-folded): the
// "simple" analyzer spec.md §4.6 names as the default (lowercase filter +
// a basic tokenizer), with punctuation treated as a separator.
func Analyze(text string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return toks
}

type stats struct {
	DocCount int `json:"doc_count"`
	TotalLen int `json:"total_len"`
}

func (s stats) avgLen() float64 {
	if s.DocCount == 0 {
		return 0
	}
	return float64(s.TotalLen) / float64(s.DocCount)
}

type posting struct {
	TF int `json:"tf"`
}

type docLen struct {
	Len int `json:"len"`
}

// Maintainer keeps one SEARCH index's postings and aggregate stats in sync
// with record mutations.
type Maintainer struct {
	NS, DB, Table string
	Index         catalog.Index
}

func New(ns, db, table string, ix catalog.Index) *Maintainer {
	return &Maintainer{NS: ns, DB: db, Table: table, Index: ix}
}

func (m *Maintainer) k1() float64 {
	if m.Index.BM25K1 != 0 {
		return m.Index.BM25K1
	}
	return 1.2
}

func (m *Maintainer) b() float64 {
	if m.Index.BM25B != 0 {
		return m.Index.BM25B
	}
	return 0.75
}

func (m *Maintainer) statsKey() []byte {
	return keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, []value.Value{value.String(statsToken)}, value.Int64(0))
}

func (m *Maintainer) docLenKey(id value.Value) []byte {
	return keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, []value.Value{value.String(docLenToken)}, id)
}

func (m *Maintainer) postingKey(token string, id value.Value) []byte {
	return keys.IndexEntry(m.NS, m.DB, m.Table, m.Index.Name, []value.Value{value.String(token)}, id)
}

func (m *Maintainer) loadStats(ctx context.Context, tx kv.Transaction) (stats, error) {
	raw, ok, err := tx.Get(ctx, m.statsKey())
	if err != nil || !ok {
		return stats{}, err
	}
	var s stats
	err = json.Unmarshal(raw, &s)
	return s, err
}

func (m *Maintainer) saveStats(ctx context.Context, tx kv.Transaction, s stats) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return tx.Put(ctx, m.statsKey(), raw)
}

// Index tokenizes text and writes one posting per distinct token, plus
// updates the document-length and index-wide aggregate bookkeeping BM25
// scoring needs.
func (m *Maintainer) Index(ctx context.Context, tx kv.Transaction, id value.Value, text string) error {
	toks := Analyze(text)
	freq := make(map[string]int, len(toks))
	for _, t := range toks {
		freq[t]++
	}
	for t, tf := range freq {
		raw, err := json.Marshal(posting{TF: tf})
		if err != nil {
			return err
		}
		if err := tx.Put(ctx, m.postingKey(t, id), raw); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(docLen{Len: len(toks)})
	if err != nil {
		return err
	}
	if err := tx.Put(ctx, m.docLenKey(id), raw); err != nil {
		return err
	}
	s, err := m.loadStats(ctx, tx)
	if err != nil {
		return err
	}
	s.DocCount++
	s.TotalLen += len(toks)
	return m.saveStats(ctx, tx, s)
}

// Remove deletes every posting id contributed and rolls back the
// aggregate stats, the inverse of Index.
func (m *Maintainer) Remove(ctx context.Context, tx kv.Transaction, id value.Value, text string) error {
	toks := Analyze(text)
	seen := make(map[string]bool, len(toks))
	for _, t := range toks {
		if seen[t] {
			continue
		}
		seen[t] = true
		if err := tx.Delete(ctx, m.postingKey(t, id)); err != nil {
			return err
		}
	}
	if err := tx.Delete(ctx, m.docLenKey(id)); err != nil {
		return err
	}
	s, err := m.loadStats(ctx, tx)
	if err != nil {
		return err
	}
	if s.DocCount > 0 {
		s.DocCount--
	}
	s.TotalLen -= len(toks)
	if s.TotalLen < 0 {
		s.TotalLen = 0
	}
	return m.saveStats(ctx, tx, s)
}

// Update replaces the indexed text for id.
func (m *Maintainer) Update(ctx context.Context, tx kv.Transaction, id value.Value, oldText, newText string) error {
	if oldText == newText {
		return nil
	}
	if err := m.Remove(ctx, tx, id, oldText); err != nil {
		return err
	}
	return m.Index(ctx, tx, id, newText)
}

// Hit is one scored search result.
type Hit struct {
	RecordID value.Value
	Score    float64
}

// Search scores every document containing at least one query token with
// Okapi BM25 and returns the top limit hits, highest score first.
func (m *Maintainer) Search(ctx context.Context, tx kv.Transaction, query string, limit int) ([]Hit, error) {
	s, err := m.loadStats(ctx, tx)
	if err != nil {
		return nil, err
	}
	if s.DocCount == 0 {
		return nil, nil
	}
	avgLen := s.avgLen()
	k1, b := m.k1(), m.b()

	scores := make(map[string]float64)
	seen := make(map[string]value.Value)
	for _, term := range uniqueTokens(Analyze(query)) {
		prefix := keys.IndexPrefix(m.NS, m.DB, m.Table, m.Index.Name, value.String(term))
		var df int
		type hit struct {
			id value.Value
			tf int
		}
		var hits []hit
		if err := tx.ScanPrefix(ctx, prefix, func(kvp kv.KeyValue) (bool, error) {
			var p posting
			if err := json.Unmarshal(kvp.Value, &p); err != nil {
				return false, err
			}
			recID, _, err := keys.DecodeValue(kvp.Key[len(prefix):])
			if err != nil {
				return false, err
			}
			df++
			hits = append(hits, hit{id: recID, tf: p.TF})
			return true, nil
		}); err != nil {
			return nil, err
		}
		idf := idfBM25(s.DocCount, df)
		for _, h := range hits {
			dl, err := m.docLength(ctx, tx, h.id)
			if err != nil {
				return nil, err
			}
			tf := float64(h.tf)
			denom := tf + k1*(1-b+b*dl/orOne(avgLen))
			scores[h.id.String()] += idf * (tf * (k1 + 1)) / denom
			seen[h.id.String()] = h.id
		}
	}

	hits := make([]Hit, 0, len(scores))
	for key, sc := range scores {
		hits = append(hits, Hit{RecordID: seen[key], Score: sc})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Maintainer) docLength(ctx context.Context, tx kv.Transaction, id value.Value) (float64, error) {
	raw, ok, err := tx.Get(ctx, m.docLenKey(id))
	if err != nil || !ok {
		return 0, err
	}
	var dl docLen
	if err := json.Unmarshal(raw, &dl); err != nil {
		return 0, err
	}
	return float64(dl.Len), nil
}

func idfBM25(n, df int) float64 {
	if df == 0 {
		return 0
	}
	x := (float64(n) - float64(df) + 0.5) / (float64(df) + 0.5)
	if x < 1e-9 {
		x = 1e-9
	}
	return math.Log(x + 1)
}

func orOne(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

func uniqueTokens(toks []string) []string {
	seen := make(map[string]bool, len(toks))
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
