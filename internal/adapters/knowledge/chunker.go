package knowledge

import "strings"

const (
	chunkSize    = 500
	chunkOverlap = 50
)

// Chunk splits a document into retrieval-sized passages. Paragraphs are
// packed up to ~chunkSize characters; oversized paragraphs are split with
// chunkOverlap characters of carry-over so sentence fragments keep
// context.
func Chunk(text string) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+1 > chunkSize {
			flush()
		}
		if len(para) <= chunkSize {
			if cur.Len() > 0 {
				cur.WriteByte('\n')
			}
			cur.WriteString(para)
			continue
		}
		flush()
		for start := 0; start < len(para); {
			end := start + chunkSize
			if end >= len(para) {
				chunks = append(chunks, strings.TrimSpace(para[start:]))
				break
			}
			// prefer breaking at a space near the boundary
			cut := end
			if i := strings.LastIndexByte(para[start:end], ' '); i > chunkSize/2 {
				cut = start + i
			}
			chunks = append(chunks, strings.TrimSpace(para[start:cut]))
			start = cut - chunkOverlap
			if start < 0 {
				start = 0
			}
		}
	}
	flush()
	return chunks
}
