package meme

import (
	"strings"
	"unicode/utf8"
)

// DefaultWrapWidth keeps Impact-style captions inside a 1024px canvas at 96pt.
const DefaultWrapWidth = 22

// Layout splits caption into render lines. Explicit newlines always start a new line; each
// segment is then wrapped greedily at wrapWidth runes without breaking words. A word longer
// than wrapWidth stays on its own line. Blank lines are dropped. wrapWidth <= 0 disables
// wrapping.
func Layout(caption string, wrapWidth int) []string {
	caption = strings.ReplaceAll(caption, "\r\n", "\n")

	var lines []string
	for _, segment := range strings.Split(caption, "\n") {
		words := strings.Fields(segment)
		if len(words) == 0 {
			continue
		}
		if wrapWidth <= 0 {
			lines = append(lines, strings.Join(words, " "))
			continue
		}

		var current strings.Builder
		width := 0
		for _, word := range words {
			n := utf8.RuneCountInString(word)
			if width > 0 && width+1+n > wrapWidth {
				lines = append(lines, current.String())
				current.Reset()
				width = 0
			}
			if width > 0 {
				current.WriteByte(' ')
				width++
			}
			current.WriteString(word)
			width += n
		}
		lines = append(lines, current.String())
	}
	return lines
}
