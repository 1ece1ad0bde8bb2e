// Package fulltext implements the inverted full-text index: tokenization,
// positional postings per (term, document, field), and TF-IDF ranked
// search.
package fulltext

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/erichchampion/codegraph/model"
)

// DefaultLimit is the result cap used when Search is called with limit <= 0.
const DefaultLimit = 10

// Entry is one posting: the positions of a term within one field of one
// document.
type Entry struct {
	NodeID    model.NodeID
	Field     string
	Positions []int
	Frequency int // == len(Positions)
}

// Result is one ranked search hit.
type Result struct {
	NodeID model.NodeID
	Score  float64
	// Matches maps field name to the token positions of matched query
	// terms within that field.
	Matches map[string][]int
}

type fieldKey struct {
	doc   uint32
	field string
}

// Index is an in-memory positional inverted index with TF-IDF ranking.
// Thread-safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	postings map[string][]Entry

	// docBits tracks, per term, the set of distinct documents containing
	// it. documentFrequency(term) is the bitmap cardinality, so it cannot
	// drift from the postings.
	docBits map[string]*roaring.Bitmap

	// fieldLens is the token count per (document, field), the TF
	// denominator.
	fieldLens map[fieldKey]int

	// docTerms records which terms each document contributed, so removal
	// does not scan the whole postings table.
	docTerms map[model.NodeID]map[string]struct{}

	// String node ids are interned to dense uint32 ids for the bitmaps.
	locals map[model.NodeID]uint32
	nextID uint32
}

// New creates an empty full-text index.
func New() *Index {
	return &Index{
		postings:  make(map[string][]Entry),
		docBits:   make(map[string]*roaring.Bitmap),
		fieldLens: make(map[fieldKey]int),
		docTerms:  make(map[model.NodeID]map[string]struct{}),
		locals:    make(map[model.NodeID]uint32),
	}
}

func (ix *Index) localID(id model.NodeID) uint32 {
	if l, ok := ix.locals[id]; ok {
		return l
	}
	l := ix.nextID
	ix.nextID++
	ix.locals[id] = l
	return l
}

// AddDocument indexes the given fields of a document. An existing document
// with the same id is replaced.
func (ix *Index) AddDocument(id model.NodeID, fields map[string]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.docTerms[id]; ok {
		ix.removeLocked(id)
	}
	ix.addLocked(id, fields)
}

// UpdateDocument re-indexes a document (remove + add).
func (ix *Index) UpdateDocument(id model.NodeID, fields map[string]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)
	ix.addLocked(id, fields)
}

// RemoveDocument drops all postings of the document and recomputes
// document frequencies for every term it touched.
func (ix *Index) RemoveDocument(id model.NodeID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)
}

func (ix *Index) addLocked(id model.NodeID, fields map[string]string) {
	local := ix.localID(id)
	terms := make(map[string]struct{})

	for field, text := range fields {
		tokens := Tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		ix.fieldLens[fieldKey{doc: local, field: field}] = len(tokens)

		// positions per term within this field
		positions := make(map[string][]int)
		for pos, tok := range tokens {
			positions[tok] = append(positions[tok], pos)
		}

		for term, pos := range positions {
			ix.postings[term] = append(ix.postings[term], Entry{
				NodeID:    id,
				Field:     field,
				Positions: pos,
				Frequency: len(pos),
			})
			bits, ok := ix.docBits[term]
			if !ok {
				bits = roaring.New()
				ix.docBits[term] = bits
			}
			bits.Add(local)
			terms[term] = struct{}{}
		}
	}

	ix.docTerms[id] = terms
}

func (ix *Index) removeLocked(id model.NodeID) {
	terms, ok := ix.docTerms[id]
	if !ok {
		return
	}
	local := ix.locals[id]

	for term := range terms {
		entries := ix.postings[term]
		kept := entries[:0]
		for _, e := range entries {
			if e.NodeID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(ix.postings, term)
			delete(ix.docBits, term)
			continue
		}
		ix.postings[term] = kept

		// Recompute the distinct-document set from the remaining entries
		// rather than decrementing a counter.
		bits := roaring.New()
		for _, e := range kept {
			bits.Add(ix.locals[e.NodeID])
		}
		ix.docBits[term] = bits
	}

	for fk := range ix.fieldLens {
		if fk.doc == local {
			delete(ix.fieldLens, fk)
		}
	}
	delete(ix.docTerms, id)
}

// Search tokenizes the query and returns documents ranked by summed TF-IDF
// across all matching fields, truncated to limit (DefaultLimit if <= 0).
func (ix *Index) Search(query string, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	totalDocs := len(ix.docTerms)
	if totalDocs == 0 {
		return nil
	}

	scores := make(map[model.NodeID]float64)
	matches := make(map[model.NodeID]map[string][]int)

	for _, term := range Tokenize(query) {
		entries, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := int(ix.docBits[term].GetCardinality())
		if df == 0 {
			continue
		}
		// Smoothed so a term present in every document still scores > 0.
		idf := math.Log(1 + float64(totalDocs)/float64(df))

		for _, e := range entries {
			local := ix.locals[e.NodeID]
			fieldLen := ix.fieldLens[fieldKey{doc: local, field: e.Field}]
			if fieldLen == 0 {
				continue
			}
			tf := float64(e.Frequency) / float64(fieldLen)
			scores[e.NodeID] += tf * idf

			m, ok := matches[e.NodeID]
			if !ok {
				m = make(map[string][]int)
				matches[e.NodeID] = m
			}
			m[e.Field] = append(m[e.Field], e.Positions...)
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{NodeID: id, Score: score, Matches: matches[id]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].NodeID < results[j].NodeID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// DocumentFrequency returns the number of distinct documents containing
// the (already-normalized) term.
func (ix *Index) DocumentFrequency(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bits, ok := ix.docBits[strings.ToLower(term)]
	if !ok {
		return 0
	}
	return int(bits.GetCardinality())
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docTerms)
}

// TermCount returns the number of distinct terms.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// Clear drops all entries.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.postings = make(map[string][]Entry)
	ix.docBits = make(map[string]*roaring.Bitmap)
	ix.fieldLens = make(map[fieldKey]int)
	ix.docTerms = make(map[model.NodeID]map[string]struct{})
	ix.locals = make(map[model.NodeID]uint32)
	ix.nextID = 0
}
