package memory

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords are dropped before keyword scoring.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be been but by can could did do does for from had has have
		he her him his how i if in into is it its just me my no not of on or our she
		so than that the their them then there these they this to too up us was we
		were what when where which who why will with would you your yes ok okay please
		about also any some all more most very really get got let lets like dont im
		的 了 是 在 我 你 他 她 它 们 和 就 都 也 吗 吧 呢 啊 这 那 有 没 不 一个 什么 怎么
		我们 你们 他们 还是 就是 但是 因为 所以 如果 可以 知道 没有 一下 这个 那个`) {
		stopwords[w] = struct{}{}
	}
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// Tokenize splits text into lowercase terms. Latin-script words of two or
// more characters become single terms; runs of Han characters become
// overlapping bigrams, since they carry no word separators.
func Tokenize(text string) []string {
	var (
		terms []string
		word  []rune
		han   []rune
	)
	flushWord := func() {
		if len(word) >= 2 {
			terms = append(terms, string(word))
		}
		word = word[:0]
	}
	flushHan := func() {
		switch {
		case len(han) == 1:
			terms = append(terms, string(han))
		case len(han) > 1:
			for i := 0; i+1 < len(han); i++ {
				terms = append(terms, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isHan(r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return terms
}

// ExtractKeywords returns up to k search terms from text, ranked by how
// often they occur weighted by their length, ties broken by first
// occurrence. Stopwords and single Han characters are skipped.
func ExtractKeywords(text string, k int) []string {
	if k <= 0 {
		return nil
	}

	type candidate struct {
		term  string
		count int
		first int
	}
	byTerm := make(map[string]*candidate)
	var order []*candidate
	for i, term := range Tokenize(text) {
		if _, stop := stopwords[term]; stop {
			continue
		}
		if n := utf8.RuneCountInString(term); n < 2 {
			continue
		}
		if c, ok := byTerm[term]; ok {
			c.count++
			continue
		}
		c := &candidate{term: term, count: 1, first: i}
		byTerm[term] = c
		order = append(order, c)
	}

	score := func(c *candidate) int {
		return c.count * min(utf8.RuneCountInString(c.term), 8)
	}
	slices.SortStableFunc(order, func(a, b *candidate) int {
		if s := cmp.Compare(score(b), score(a)); s != 0 {
			return s
		}
		return cmp.Compare(a.first, b.first)
	})

	out := make([]string, 0, min(k, len(order)))
	for _, c := range order[:min(k, len(order))] {
		out = append(out, c.term)
	}
	return out
}

// ContainsAll reports whether content contains every keyword,
// case-insensitively.
func ContainsAll(content string, keywords []string) bool {
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}
