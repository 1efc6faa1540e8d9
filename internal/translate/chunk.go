package translate

import (
	"context"
	"strings"
)

// translateDocument translates a long details document by paragraph-aware
// chunking, each chunk going through the cached single-field path.
// Documents over the hard cap come back empty, signaling "skip".
func (e *Engine) translateDocument(ctx context.Context, details, src, dst string) string {
	if len(details) > e.opts.MaxDocChars {
		return ""
	}

	chunks := splitChunks(details, e.opts.ChunkChars)
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		out[i] = e.translateText(ctx, chunk, src, dst)
	}
	return strings.Join(out, "\n\n")
}

// splitChunks splits text on blank-line paragraph boundaries and packs
// consecutive paragraphs into chunks under maxChars. A single paragraph
// over the budget is split further on sentence boundaries.
func splitChunks(text string, maxChars int) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimRight(p, " \t\r\n")
		if strings.TrimSpace(p) == "" {
			continue
		}
		if len(p) > maxChars {
			paragraphs = append(paragraphs, splitSentences(p, maxChars)...)
		} else {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+2+len(p) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences breaks an oversized paragraph into pieces under maxChars,
// cutting after sentence-ending punctuation where possible.
func splitSentences(paragraph string, maxChars int) []string {
	var pieces []string
	var current strings.Builder

	for _, sentence := range sentences(paragraph) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxChars {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// sentences splits text after '.', '!' or '?' followed by whitespace.
// A sentence longer than anyone's budget stays intact; the provider has to
// cope with it.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && (text[i+1] == ' ' || text[i+1] == '\n') {
			out = append(out, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
