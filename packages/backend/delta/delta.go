// Package delta computes minimal textual edits between successive
// transcript or translation snapshots so a consumer can render a
// correction instead of a full repaint.
package delta

// Compute returns the suffix of curr that follows the longest common
// prefix shared with prev. Streaming STT and MT output is overwhelmingly
// prefix-stable with tail revision, so a prefix-only model captures the
// animation signal cheaply without a general diff algorithm.
//
// Comparison walks runes, not bytes, so a multi-byte code point is never
// split across the prefix boundary.
func Compute(prev, curr string) string {
	if prev == "" {
		return curr
	}
	if curr == "" {
		return ""
	}

	prevRunes := []rune(prev)
	currRunes := []rune(curr)

	n := len(prevRunes)
	if len(currRunes) < n {
		n = len(currRunes)
	}

	common := 0
	for common < n && prevRunes[common] == currRunes[common] {
		common++
	}

	return string(currRunes[common:])
}
