package correlate

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// maxFeatures bounds the vocabulary of one vectorization pass. Terms
// beyond the cap are dropped, keeping the most frequent ones.
const maxFeatures = 100

// stopWords are common English function words excluded from alert text
// before weighting. Alert messages are short, so a compact list is
// enough to keep filler words from dominating the similarity.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "over": {}, "than": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "this": {}, "to": {}, "under": {}, "was": {},
	"were": {}, "which": {}, "while": {}, "with": {},
}

// alertText flattens an alert into the text used for similarity:
// name, message, and each label as a key:value pair.
func alertText(a *model.AlertRecord) string {
	var sb strings.Builder
	sb.WriteString(a.Name)
	sb.WriteByte(' ')
	sb.WriteString(a.Message)
	for k, v := range a.Labels {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	return sb.String()
}

// tokenize splits text into lowercase word tokens of at least two
// characters, dropping stop words. A word is a maximal run of letters,
// digits, and underscores.
func tokenize(text string) []string {
	var tokens []string
	var word []rune
	flush := func() {
		if len(word) >= 2 {
			tok := string(word)
			if _, stop := stopWords[tok]; !stop {
				tokens = append(tokens, tok)
			}
		}
		word = word[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			word = append(word, unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// vectorize builds L2-normalized TF-IDF vectors for the given token
// bags. The inverse document frequency is smoothed,
// idf = ln((1+n)/(1+df)) + 1, so terms appearing in every document
// still carry weight. Documents with no tokens map to zero vectors.
// Returns nil when the whole corpus has no tokens at all.
func vectorize(docs [][]string) [][]float64 {
	n := len(docs)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	total := make(map[string]int)
	for i, doc := range docs {
		c := make(map[string]int, len(doc))
		for _, tok := range doc {
			c[tok]++
			total[tok]++
		}
		for tok := range c {
			df[tok]++
		}
		counts[i] = c
	}
	if len(df) == 0 {
		return nil
	}

	vocab := make([]string, 0, len(df))
	for tok := range df {
		vocab = append(vocab, tok)
	}
	if len(vocab) > maxFeatures {
		// Keep the most frequent terms, ties broken alphabetically so
		// the selection is stable across runs.
		sort.Slice(vocab, func(i, j int) bool {
			if total[vocab[i]] != total[vocab[j]] {
				return total[vocab[i]] > total[vocab[j]]
			}
			return vocab[i] < vocab[j]
		})
		vocab = vocab[:maxFeatures]
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		index[tok] = i
	}
	idf := make([]float64, len(vocab))
	for i, tok := range vocab {
		idf[i] = math.Log(float64(1+n)/float64(1+df[tok])) + 1
	}

	vectors := make([][]float64, n)
	for i, c := range counts {
		v := make([]float64, len(vocab))
		var norm float64
		for tok, cnt := range c {
			j, ok := index[tok]
			if !ok {
				continue
			}
			v[j] = float64(cnt) * idf[j]
			norm += v[j] * v[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range v {
				v[j] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors
}

// cosine returns the cosine similarity of two vectors of equal length.
// Vectors from vectorize are already L2-normalized, so this is a plain
// dot product; a zero vector yields zero similarity.
func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
