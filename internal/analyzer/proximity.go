package analyzer

import (
	"sort"
	"strings"
)

// keywordHit is one occurrence of a catalog keyword in the text
type keywordHit struct {
	Keyword   string
	WordIndex int
	Offset    int
	Context   string
}

// keywordGroup is the best cluster of distinct keywords found for a type
type keywordGroup struct {
	Hits     []keywordHit
	Distinct int
	Span     int // word distance between first and last hit
}

// indexedText precomputes the word layout of a document so every pattern
// evaluation shares one tokenization pass.
type indexedText struct {
	raw    string
	lower  string
	starts []int // byte offset of each word
}

const contextRadius = 50

func indexText(text string) *indexedText {
	idx := &indexedText{raw: text, lower: strings.ToLower(text)}
	inWord := false
	for i, r := range text {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !space && !inWord {
			idx.starts = append(idx.starts, i)
			inWord = true
		} else if space {
			inWord = false
		}
	}
	return idx
}

// WordCount returns the number of words in the document
func (t *indexedText) WordCount() int { return len(t.starts) }

// wordIndexAt maps a byte offset to the index of the word containing it
func (t *indexedText) wordIndexAt(offset int) int {
	i := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] > offset })
	if i == 0 {
		return 0
	}
	return i - 1
}

// context returns a ±contextRadius snippet around an offset
func (t *indexedText) context(offset, length int) string {
	start := offset - contextRadius
	if start < 0 {
		start = 0
	}
	end := offset + length + contextRadius
	if end > len(t.raw) {
		end = len(t.raw)
	}
	return strings.TrimSpace(t.raw[start:end])
}

// locate finds every case-insensitive occurrence of a keyword
func (t *indexedText) locate(keyword string) []keywordHit {
	needle := strings.ToLower(keyword)
	var hits []keywordHit
	from := 0
	for {
		i := strings.Index(t.lower[from:], needle)
		if i < 0 {
			break
		}
		offset := from + i
		hits = append(hits, keywordHit{
			Keyword:   keyword,
			WordIndex: t.wordIndexAt(offset),
			Offset:    offset,
			Context:   t.context(offset, len(needle)),
		})
		from = offset + len(needle)
	}
	return hits
}

// bestGroup slides a window of maxDistance words over all keyword hits and
// returns the cluster with the most distinct keywords. Pairwise distance
// within maxDistance is equivalent to the window's span being within it.
// Returns nil when fewer than minTogether distinct keywords cluster.
func bestGroup(hits []keywordHit, maxDistance, minTogether int) *keywordGroup {
	if len(hits) == 0 {
		return nil
	}
	sorted := make([]keywordHit, len(hits))
	copy(sorted, hits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].WordIndex < sorted[j].WordIndex })

	var best *keywordGroup
	left := 0
	counts := map[string]int{}
	distinct := 0

	for right := 0; right < len(sorted); right++ {
		if counts[sorted[right].Keyword] == 0 {
			distinct++
		}
		counts[sorted[right].Keyword]++

		for sorted[right].WordIndex-sorted[left].WordIndex > maxDistance {
			counts[sorted[left].Keyword]--
			if counts[sorted[left].Keyword] == 0 {
				distinct--
			}
			left++
		}

		span := sorted[right].WordIndex - sorted[left].WordIndex
		if best == nil || distinct > best.Distinct || (distinct == best.Distinct && span < best.Span) {
			group := &keywordGroup{
				Hits:     append([]keywordHit(nil), sorted[left:right+1]...),
				Distinct: distinct,
				Span:     span,
			}
			best = group
		}
	}

	if best == nil || best.Distinct < minTogether {
		return nil
	}
	return best
}

// proximityScore grades how tightly a group clusters: same paragraph, same
// section, same page, or scattered.
func proximityScore(span int) float64 {
	switch {
	case span <= 50:
		return 1.0
	case span <= 200:
		return 0.8
	case span <= 500:
		return 0.6
	default:
		return 0.3
	}
}

// boostMultiplier is the confidence multiplier applied when a pattern opts
// into proximity boosting.
func boostMultiplier(span int) float64 {
	switch {
	case span <= 50:
		return 1.5
	case span <= 200:
		return 1.3
	case span <= 500:
		return 1.1
	default:
		return 0.8
	}
}
