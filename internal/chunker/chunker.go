// Package chunker splits document text into overlapping, position-tracked
// passages. Separator priority is script-aware: text carrying CJK ideographs
// is split on CJK sentence terminators before clause punctuation before
// Latin punctuation, so that multilingual documents break on real sentence
// boundaries instead of mid-ideograph.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/zilogo/simba/internal/kberr"
)

// Chunk is one passage of the source document. Offsets are rune positions
// into the original text. Content never exceeds the requested chunk size.
type Chunk struct {
	Content   string `json:"content"`
	Position  int    `json:"position"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// Separators for pure Latin text, strongest break first.
var latinSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Separators for text containing CJK ideographs. Order matters: sentence
// terminators outrank clause punctuation outrank commas outrank spaces.
var mixedSeparators = []string{
	"\n\n",
	"\n",
	"。", // ideographic full stop
	"！", // fullwidth exclamation mark
	"？", // fullwidth question mark
	". ",
	"! ",
	"? ",
	"；", // fullwidth semicolon
	"：", // fullwidth colon
	"; ",
	": ",
	"，", // fullwidth comma
	"、", // ideographic comma
	", ",
	" ",
	"",
}

// ContainsCJK reports whether text carries any character in the CJK Unified
// Ideographs ranges (U+4E00..U+9FFF, U+3400..U+4DBF).
func ContainsCJK(text string) bool {
	for _, r := range text {
		if (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF) {
			return true
		}
	}
	return false
}

// Separators returns the separator priority list appropriate for text.
func Separators(text string) []string {
	if ContainsCJK(text) {
		return mixedSeparators
	}
	return latinSeparators
}

// piece is an intermediate fragment, guaranteed <= chunkSize runes. solo
// pieces came from hard rune slicing and already carry their own overlap,
// so the merge phase must not glue them to neighbors.
type piece struct {
	text string
	solo bool
}

// Split chunks text into passages of at most size runes with overlap runes
// repeated between consecutive passages. Empty input yields an empty slice.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, kberr.NewConfig("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, kberr.NewConfig("chunk overlap %d must be in [0, chunk size %d)", overlap, size)
	}
	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}

	pieces := split(text, size, overlap, Separators(text))
	contents := merge(pieces, size, overlap)
	return locate(text, contents, overlap), nil
}

// split recursively breaks text into pieces no longer than size runes,
// working down the separator priority list. When no separator helps, the
// text is sliced by runes with overlap carried inside the slices.
func split(text string, size, overlap int, seps []string) []piece {
	if runeLen(text) <= size {
		return []piece{{text: text}}
	}

	for i, sep := range seps {
		if sep == "" {
			break
		}
		if !strings.Contains(text, sep) {
			continue
		}
		parts := strings.SplitAfter(text, sep)
		out := make([]piece, 0, len(parts))
		for _, part := range parts {
			if part == "" {
				continue
			}
			if runeLen(part) <= size {
				out = append(out, piece{text: part})
				continue
			}
			out = append(out, split(part, size, overlap, seps[i+1:])...)
		}
		return out
	}

	return sliceRunes(text, size, overlap)
}

// sliceRunes is the last-resort splitter: fixed windows of size runes
// stepping size-overlap, so consecutive windows repeat overlap runes.
func sliceRunes(text string, size, overlap int) []piece {
	runes := []rune(text)
	step := size - overlap
	out := make([]piece, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, piece{text: string(runes[start:end]), solo: true})
		if end == len(runes) {
			break
		}
	}
	return out
}

// merge greedily packs pieces into chunks of at most size runes, carrying
// the trailing pieces whose combined length fits within overlap into the
// next chunk. Solo pieces pass through untouched.
func merge(pieces []piece, size, overlap int) []string {
	var chunks []string
	var window []string
	var windowLen int

	flush := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			chunks = append(chunks, joined)
		}
		// Retain the tail that fits within overlap for the next chunk.
		keepFrom := len(window)
		kept := 0
		for i := len(window) - 1; i >= 0; i-- {
			l := runeLen(window[i])
			if kept+l > overlap {
				break
			}
			kept += l
			keepFrom = i
		}
		window = append([]string(nil), window[keepFrom:]...)
		windowLen = kept
	}

	for _, p := range pieces {
		if p.solo {
			// Hard-sliced runs already carry overlap; emit what came
			// before, then the run on its own.
			if len(window) > 0 {
				joined := strings.TrimSpace(strings.Join(window, ""))
				if joined != "" {
					chunks = append(chunks, joined)
				}
				window = window[:0]
				windowLen = 0
			}
			if t := strings.TrimSpace(p.text); t != "" {
				chunks = append(chunks, t)
			}
			continue
		}
		l := runeLen(p.text)
		if windowLen+l > size && len(window) > 0 {
			flush()
			// The kept overlap plus the new piece may still overflow;
			// drop retained pieces from the front until it fits.
			for windowLen+l > size && len(window) > 0 {
				windowLen -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, p.text)
		windowLen += l
	}
	if len(window) > 0 {
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}
	return chunks
}

// locate recovers rune offsets for each chunk by scanning forward from the
// effective (non-overlapping) end of the previous chunk. If trimming broke
// the exact match, the running offset is used as a best-effort fallback.
func locate(text string, contents []string, overlap int) []Chunk {
	chunks := make([]Chunk, 0, len(contents))
	searchFrom := 0 // byte offset
	for i, content := range contents {
		byteIdx := strings.Index(text[searchFrom:], content)
		var startByte int
		if byteIdx >= 0 {
			startByte = searchFrom + byteIdx
		} else {
			startByte = searchFrom
		}
		start := utf8.RuneCountInString(text[:startByte])
		end := start + runeLen(content)
		chunks = append(chunks, Chunk{
			Content:   content,
			Position:  i,
			StartChar: start,
			EndChar:   end,
		})

		// Advance past the non-overlapping region so the next search
		// cannot rediscover this chunk's text.
		endByte := startByte + len(content)
		next := endByte - byteLenOfLastRunes(content, overlap)
		if next <= startByte {
			next = startByte + 1
		}
		if next > len(text) {
			next = len(text)
		}
		searchFrom = next
	}
	return chunks
}

// byteLenOfLastRunes returns the byte length of the trailing n runes of s.
func byteLenOfLastRunes(s string, n int) int {
	if n <= 0 {
		return 0
	}
	runes := []rune(s)
	if n >= len(runes) {
		return len(s)
	}
	return len(string(runes[len(runes)-n:]))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
