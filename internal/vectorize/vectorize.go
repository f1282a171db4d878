// Package vectorize builds TF-IDF vectors over small document corpora and
// computes pairwise cosine similarity between them.
package vectorize

import (
	"math"
	"runtime"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Analyzer selects how a document is cut into terms.
type Analyzer int

const (
	// Word produces word n-grams.
	Word Analyzer = iota
	// Char produces character n-grams.
	Char
)

// Config controls term extraction and document-frequency pruning.
type Config struct {
	Analyzer     Analyzer
	MinN, MaxN   int
	MinDF        int
	MaxDF        float64 // fraction of documents; <= 0 or >= 1 disables the ceiling
	StripAccents bool
}

// WordConfig is the word uni/bi/tri-gram configuration.
func WordConfig() Config {
	return Config{Analyzer: Word, MinN: 1, MaxN: 3, MinDF: 1, MaxDF: 0.95, StripAccents: true}
}

// QuestionConfig is the word configuration for answers to a single
// question. It has no document-frequency ceiling, so terms shared by every
// answer are kept.
func QuestionConfig() Config {
	return Config{Analyzer: Word, MinN: 1, MaxN: 3, MinDF: 1}
}

// CharConfig is the 3 to 5 character n-gram configuration.
func CharConfig() Config {
	return Config{Analyzer: Char, MinN: 3, MaxN: 5, MinDF: 1}
}

// maxDFMinDocs is the smallest corpus the document-frequency ceiling applies to.
// With two documents every shared term is in 100% of them.
const maxDFMinDocs = 3

// Vector is a sparse L2-normalized document vector. Indices are sorted
// ascending; a zero-term document has no entries.
type Vector struct {
	idx []int
	val []float64
}

// Len returns the number of non-zero terms.
func (v Vector) Len() int { return len(v.idx) }

// Dot returns the dot product of two vectors built from the same fit.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.idx) && j < len(o.idx) {
		switch {
		case v.idx[i] == o.idx[j]:
			sum += v.val[i] * o.val[j]
			i++
			j++
		case v.idx[i] < o.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of two normalized vectors, clamped to
// [0, 1]. Zero vectors are 0 to everything.
func Cosine(a, b Vector) float64 {
	if a.Len() == 0 || b.Len() == 0 {
		return 0
	}
	return math.Min(1, math.Max(0, a.Dot(b)))
}

// Terms cuts doc into the terms the configuration produces, in order.
func (c Config) Terms(doc string) []string {
	doc = strings.ToLower(doc)
	if c.StripAccents {
		doc = stripAccents(doc)
	}
	if c.Analyzer == Char {
		return charNgrams(strings.Join(strings.Fields(doc), " "), c.MinN, c.MaxN)
	}
	return wordNgrams(tokenize(doc), c.MinN, c.MaxN)
}

// FitTransform builds the vocabulary over docs and returns one vector per
// document. Raw term counts are weighted by the smoothed inverse document
// frequency ln((1+N)/(1+df))+1.
func FitTransform(c Config, docs []string) []Vector {
	n := len(docs)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, d := range docs {
		tc := make(map[string]int)
		for _, t := range c.Terms(d) {
			tc[t]++
		}
		for t := range tc {
			df[t]++
		}
		counts[i] = tc
	}

	maxDocs := n
	if c.MaxDF > 0 && c.MaxDF < 1 && n >= maxDFMinDocs {
		maxDocs = int(math.Floor(c.MaxDF * float64(n)))
	}
	vocab := make([]string, 0, len(df))
	for t, f := range df {
		if f >= c.MinDF && f <= maxDocs {
			vocab = append(vocab, t)
		}
	}
	sort.Strings(vocab)
	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for i, t := range vocab {
		index[t] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}

	out := make([]Vector, n)
	for i, tc := range counts {
		var v Vector
		for t := range tc {
			if k, ok := index[t]; ok {
				v.idx = append(v.idx, k)
			}
		}
		sort.Ints(v.idx)
		v.val = make([]float64, len(v.idx))
		var norm2 float64
		for j, k := range v.idx {
			w := float64(tc[vocab[k]]) * idf[k]
			v.val[j] = w
			norm2 += w * w
		}
		if norm2 > 0 {
			l := math.Sqrt(norm2)
			for j := range v.val {
				v.val[j] /= l
			}
		}
		out[i] = v
	}
	return out
}

// Similarity returns the N x N cosine similarity matrix of docs.
func Similarity(c Config, docs []string) [][]float64 {
	vecs := FitTransform(c, docs)
	return Pairwise(len(vecs), 0, func(i, j int) float64 {
		return Cosine(vecs[i], vecs[j])
	})
}

// Pairwise fills a symmetric n x n matrix with fn(i, j) for j >= i on a pool
// of at most workers goroutines (GOMAXPROCS when workers <= 0). The goroutine
// for row i owns cells [i][j] and [j][i] for j >= i, so no locking is needed.
func Pairwise(n, workers int, fn func(i, j int) float64) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for j := i; j < n; j++ {
				v := fn(i, j)
				m[i][j] = v
				m[j][i] = v
			}
			return nil
		})
	}
	_ = g.Wait()
	return m
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize returns runs of two or more letters, digits or underscores.
func tokenize(s string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) >= 2 {
			tokens = append(tokens, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func wordNgrams(tokens []string, minN, maxN int) []string {
	if minN < 1 {
		minN = 1
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func charNgrams(s string, minN, maxN int) []string {
	rs := []rune(s)
	if minN < 1 {
		minN = 1
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(rs); i++ {
			out = append(out, string(rs[i:i+n]))
		}
	}
	return out
}
