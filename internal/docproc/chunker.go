package docproc

import (
	"strings"
	"unicode"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Chunker splits normalized text into sentence-aware, size-bounded chunks.
// Overlap is measured in characters but applied at sentence granularity:
// a new chunk re-starts with the trailing sentences of the previous one,
// never with an arbitrary character cut.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Non-positive size or negative overlap fall
// back to the defaults (800/100).
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	return Chunker{size: size, overlap: overlap}
}

// Split returns ordered chunks of text. Every chunk is at most size
// characters long unless a single sentence alone exceeds the size, in
// which case that sentence becomes its own oversized chunk (sentences are
// never split mid-word). Empty input yields nil.
func (c Chunker) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		length := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if length > 0 {
				add++ // joining space
			}
			if length > 0 && length+add > c.size {
				break
			}
			length += add
			j++
		}
		chunks = append(chunks, strings.Join(sentences[i:j], " "))

		if j >= len(sentences) {
			break
		}

		next := j
		if c.overlap > 0 {
			back := 0
			for k := j - 1; k > i; k-- {
				step := len(sentences[k])
				if back > 0 {
					step++
				}
				if back+step > c.overlap {
					break
				}
				back += step
				next = k
			}
		}
		// Guarantee forward progress even when overlap would cover the
		// whole previous chunk.
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}

// splitSentences normalizes whitespace and splits text into sentences.
// Paragraph breaks (blank lines) are hard sentence boundaries; within a
// paragraph a sentence ends at ./!/? followed by whitespace and an upper
// case letter (or end of text), except after abbreviations.
func splitSentences(text string) []string {
	var sentences []string
	for _, para := range splitParagraphs(text) {
		sentences = append(sentences, splitParagraph(para)...)
	}
	return sentences
}

// splitParagraphs breaks text on blank lines and collapses all remaining
// whitespace runs inside each paragraph to single spaces.
func splitParagraphs(text string) []string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			flush()
			continue
		}
		cur = append(cur, strings.Join(fields, " "))
	}
	flush()
	return paras
}

func splitParagraph(para string) []string {
	runes := []rune(para)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Require whitespace after the terminator (or end of paragraph).
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 && j < len(runes) {
			continue
		}
		// A lower-case continuation means mid-sentence punctuation.
		if j < len(runes) && !unicode.IsUpper(runes[j]) && !unicode.IsDigit(runes[j]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i+1]) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// abbrevWords are title and latin abbreviations that never end a sentence.
var abbrevWords = map[string]struct{}{
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {},
	"sr": {}, "jr": {}, "st": {}, "vs": {}, "etc": {},
	"no": {}, "inc": {}, "fig": {}, "al": {},
}

// isAbbreviation reports whether the run of text ending at a period ends
// in an abbreviation: a dotted acronym ("U.S.A.", "Ph.D.", "A.I."), a
// lone capital initial ("J."), or a known title word ("Dr.").
func isAbbreviation(upTo []rune) bool {
	// Walk back over the token containing letters and periods.
	end := len(upTo) // upTo ends with the candidate period
	startTok := end - 1
	for startTok > 0 {
		r := upTo[startTok-1]
		if r == '.' || unicode.IsLetter(r) {
			startTok--
			continue
		}
		break
	}
	token := string(upTo[startTok:end])

	if isDottedAcronym(token) {
		return true
	}

	word := strings.TrimSuffix(token, ".")
	if strings.Contains(word, ".") {
		return false
	}
	_, ok := abbrevWords[strings.ToLower(word)]
	return ok
}

// isDottedAcronym matches tokens built from 1-2 letter groups each
// followed by a period: "U.S.A.", "Ph.D.", "A.I.", and bare initials "J.".
func isDottedAcronym(token string) bool {
	if token == "" || !strings.HasSuffix(token, ".") {
		return false
	}
	groups := 0
	rest := token
	for rest != "" {
		dot := strings.IndexByte(rest, '.')
		if dot < 1 || dot > 2 {
			return false
		}
		for _, r := range rest[:dot] {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		groups++
		rest = rest[dot+1:]
	}
	if groups == 1 {
		// A single group is only an abbreviation when it is a lone
		// capital initial, not a short word like "Go.".
		return len(token) == 2 && unicode.IsUpper(rune(token[0]))
	}
	return true
}
