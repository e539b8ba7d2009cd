package demo

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// TopK is how many documents a query retrieves before authorization.
	TopK = 5
	// snippetRunes is the longest text excerpt returned per document.
	snippetRunes = 200
)

type hit struct {
	doc   StoredDocument
	score float64
}

// retrieve ranks docs against question and returns the best k. Every query
// retrieves k documents (fewer only when the catalog is smaller), the way a
// similarity search would; unrelated documents simply score low.
func retrieve(question string, docs []StoredDocument, k int) []hit {
	terms := queryTerms(question)
	hits := make([]hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, hit{doc: d, score: score(terms, d)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.position < hits[j].doc.position
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// queryTerms splits on anything that is not a letter or digit. Runs of CJK
// text have no spaces, so they are also broken into overlapping bigrams.
func queryTerms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]struct{}{}
	var out []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, f := range fields {
		if hasCJK(f) {
			rs := []rune(f)
			if len(rs) == 1 {
				add(f)
			}
			for i := 0; i+1 < len(rs); i++ {
				add(string(rs[i : i+2]))
			}
			continue
		}
		if utf8.RuneCountInString(f) < 2 || stopwords[f] {
			continue
		}
		add(f)
	}
	return out
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

// score is the share of terms that occur in the document, with title hits
// counting double. The result is in [0, 1].
func score(terms []string, d StoredDocument) float64 {
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(d.Title + " " + d.Category)
	body := strings.ToLower(d.Text)
	var got float64
	for _, t := range terms {
		switch {
		case strings.Contains(title, t):
			got += 2
		case strings.Contains(body, t):
			got++
		}
	}
	s := got / float64(2*len(terms))
	return math.Round(s*10000) / 10000
}

// snippet cuts text to snippetRunes runes, marking the cut with "...".
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	rs := []rune(text)
	return string(rs[:snippetRunes]) + "..."
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "about": true, "as": true,
	"at": true, "be": true, "by": true, "do": true, "does": true, "for": true,
	"from": true, "how": true, "in": true, "is": true, "it": true, "me": true,
	"of": true, "on": true, "or": true, "our": true, "tell": true, "the": true,
	"to": true, "us": true, "we": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "will": true, "with": true,
	"you": true, "your": true,
}
