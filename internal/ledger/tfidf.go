package ledger

import "math"

// SurfaceKeywords ranks the tokens of the supplied mention subset by TF-IDF
// and returns those whose score exceeds the threshold. Term frequency is
// computed over exactly the subset; inverse document frequency uses the
// corpus-wide statistics the ledger has accumulated. An empty subset yields
// no keywords, and tokens the corpus has never seen are skipped rather than
// dividing by zero.
func (l *Ledger) SurfaceKeywords(mentions []Mention, threshold float64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	totalTokens := 0
	tokenFreq := make(map[string]int)

	for _, mention := range mentions {
		for _, token := range mention.Tokens {
			tokenFreq[token]++
			totalTokens++
		}
	}

	if totalTokens == 0 {
		return nil
	}

	var keywords []string

	for token, freq := range tokenFreq {
		docFreq := l.docFrequency[token]
		if docFreq == 0 {
			continue
		}

		tf := float64(freq) / float64(totalTokens)
		idf := math.Log(float64(l.totalMessages) / float64(docFreq))

		if tf*idf > threshold {
			keywords = append(keywords, token)
		}
	}

	return keywords
}
