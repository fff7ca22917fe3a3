package ml

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SparseVector maps vocabulary indices to term counts.
type SparseVector map[int]float64

// CharVectorizer counts word-bounded character n-grams (the "char_wb" analyzer): every
// whitespace-separated word is padded with one space on each side before n-grams are taken.
type CharVectorizer struct {
	NgramMin   int            `json:"ngram_min"`
	NgramMax   int            `json:"ngram_max"`
	Lowercase  bool           `json:"lowercase"`
	Vocabulary map[string]int `json:"vocabulary"`
}

// Analyze returns the n-grams of text in emission order, duplicates included.
func (v *CharVectorizer) Analyze(text string) []string {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	var grams []string
	for _, word := range strings.Fields(text) {
		w := []rune(" " + word + " ")
		for n := v.NgramMin; n <= v.NgramMax; n++ {
			offset := 0
			grams = append(grams, string(w[offset:min(offset+n, len(w))]))
			for offset+n < len(w) {
				offset++
				grams = append(grams, string(w[offset:offset+n]))
			}
			// A word shorter than n is counted once, not once per n.
			if offset == 0 {
				break
			}
		}
	}
	return grams
}

// Transform counts the known n-grams of text. Unknown n-grams are ignored.
func (v *CharVectorizer) Transform(text string) SparseVector {
	vec := make(SparseVector)
	for _, gram := range v.Analyze(text) {
		if idx, ok := v.Vocabulary[gram]; ok {
			vec[idx]++
		}
	}
	return vec
}

// Size is the vocabulary size.
func (v *CharVectorizer) Size() int {
	return len(v.Vocabulary)
}

// Validate checks n-gram bounds and that vocabulary indices are dense.
func (v *CharVectorizer) Validate() error {
	if v.NgramMin < 1 || v.NgramMax < v.NgramMin {
		return fmt.Errorf("invalid ngram range (%d, %d)", v.NgramMin, v.NgramMax)
	}
	if len(v.Vocabulary) == 0 {
		return errors.New("vectorizer vocabulary is empty")
	}
	seen := make([]bool, len(v.Vocabulary))
	for gram, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(seen) || seen[idx] {
			return fmt.Errorf("vocabulary index %d for %q is out of range or duplicated", idx, gram)
		}
		seen[idx] = true
	}
	return nil
}

// FitCharVectorizer builds a vocabulary over docs. Indices follow lexical order of the n-grams.
func FitCharVectorizer(docs []string, ngramMin, ngramMax int) (*CharVectorizer, error) {
	v := &CharVectorizer{NgramMin: ngramMin, NgramMax: ngramMax, Lowercase: true}
	if ngramMin < 1 || ngramMax < ngramMin {
		return nil, fmt.Errorf("invalid ngram range (%d, %d)", ngramMin, ngramMax)
	}

	set := make(map[string]struct{})
	for _, doc := range docs {
		for _, gram := range v.Analyze(doc) {
			set[gram] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, errors.New("empty vocabulary; documents produced no n-grams")
	}

	grams := make([]string, 0, len(set))
	for gram := range set {
		grams = append(grams, gram)
	}
	sort.Strings(grams)

	v.Vocabulary = make(map[string]int, len(grams))
	for i, gram := range grams {
		v.Vocabulary[gram] = i
	}
	return v, nil
}
