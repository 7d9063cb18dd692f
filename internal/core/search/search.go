package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/embed"
	"github.com/simeonradivoev/electron-dam-sub000/internal/index/store"
)

// candidateLimit caps how many lexical hits feed the merge. Ranking is
// global across both signals, so the lexical side is fetched in one gulp
// rather than paged at the index.
const candidateLimit = 500

type Options struct {
	Store    store.Store
	Embedder embed.Generator // nil disables the semantic leg
	// PageSize is results per page; SimilarityFloor is the minimum cosine
	// for a semantic match to count at all. Zero or negative values take
	// the defaults (50 and 0.8).
	PageSize        int
	SimilarityFloor float64
}

type Query struct {
	Term      string
	FileTypes []string
	Page      int
}

// Result is one ranked hit. Lexical and Semantic are the raw per-signal
// scores; Score is the combined relevance the page is ordered by.
// TagScores annotates how closely each of the entry's tags matches the
// query term.
type Result struct {
	Entry     store.Entry
	Score     float64
	Lexical   float64
	Semantic  float64
	TagScores map[string]float64
}

type Searcher struct {
	store    store.Store
	embed    embed.Generator
	pageSize int
	floor    float64
}

func New(opts Options) *Searcher {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.SimilarityFloor <= 0 {
		opts.SimilarityFloor = 0.8
	}
	return &Searcher{
		store:    opts.Store,
		embed:    opts.Embedder,
		pageSize: opts.PageSize,
		floor:    opts.SimilarityFloor,
	}
}

// Search runs the hybrid query and returns one page of ranked results. An
// empty term browses the index ordered by path. With an embedder present
// the term is embedded once and brute-force cosine over stored vectors
// supplies the semantic leg; entries clearing the floor rank even when the
// words never match.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return s.browse(q)
	}

	merged := map[string]*Result{}

	hits, err := s.store.SearchLexical(store.LexicalQuery{
		Term:      term,
		FileTypes: q.FileTypes,
		Limit:     candidateLimit,
	})
	if err != nil {
		return nil, err
	}
	maxLex := 0.0
	for _, h := range hits {
		if h.Score > maxLex {
			maxLex = h.Score
		}
	}
	for _, h := range hits {
		r := &Result{Lexical: h.Score}
		if maxLex > 0 {
			r.Score = h.Score / maxLex
		}
		merged[h.ID] = r
	}

	if s.embed != nil {
		vec, err := s.embed.Generate(ctx, term)
		if err != nil {
			return nil, err
		}
		types := typeSet(q.FileTypes)
		err = s.store.ForEach(func(e store.Entry) error {
			if len(e.Vector) == 0 {
				return nil
			}
			if types != nil {
				if _, ok := types[e.FileType]; !ok {
					return nil
				}
			}
			sim := Cosine(vec, e.Vector)
			if sim < s.floor {
				return nil
			}
			r, ok := merged[e.ID]
			if !ok {
				r = &Result{}
				merged[e.ID] = r
			}
			r.Semantic = sim
			if sim > r.Score {
				r.Score = sim
			}
			r.Entry = e
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]Result, 0, len(merged))
	for id, r := range merged {
		if r.Entry.ID == "" {
			e, ok, err := s.store.Get(id)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue // index and docs raced; drop
			}
			r.Entry = e
		}
		r.TagScores = tagScores(term, r.Entry.Tags)
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	return page(out, q.Page, s.pageSize), nil
}

func (s *Searcher) browse(q Query) ([]Result, error) {
	types := typeSet(q.FileTypes)
	var out []Result
	err := s.store.ForEach(func(e store.Entry) error {
		if types != nil {
			if _, ok := types[e.FileType]; !ok {
				return nil
			}
		}
		out = append(out, Result{Entry: e})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.Path < out[j].Entry.Path })
	return page(out, q.Page, s.pageSize), nil
}

// tagScores rates each tag against the term: exact match, then prefix,
// then substring, case-insensitive.
func tagScores(term string, tags []string) map[string]float64 {
	if len(tags) == 0 {
		return nil
	}
	lower := strings.ToLower(term)
	out := make(map[string]float64, len(tags))
	for _, tag := range tags {
		lt := strings.ToLower(tag)
		switch {
		case lt == lower:
			out[tag] = 1
		case strings.HasPrefix(lt, lower):
			out[tag] = 0.75
		case strings.Contains(lt, lower):
			out[tag] = 0.5
		default:
			out[tag] = 0
		}
	}
	return out
}

// Cosine is the cosine similarity of two vectors; zero when either is
// empty, mismatched lengths compare over the shorter prefix.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func typeSet(types []string) map[string]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func page(rs []Result, page int, size int) []Result {
	if page < 0 {
		page = 0
	}
	start := page * size
	if start >= len(rs) {
		return nil
	}
	end := start + size
	if end > len(rs) {
		end = len(rs)
	}
	return rs[start:end]
}
