package engine

import (
	"sort"
	"strings"
)

// MaxFixPasses is how many times fixes are re-applied after re-linting.
const MaxFixPasses = 10

// applyFixes applies every fix that pred accepts, in range order, skipping
// any fix that overlaps or touches one already applied. It reports whether
// the text changed.
func applyFixes(text string, messages []Message, pred FixPredicate) (string, bool) {
	var fixes []Message
	for _, m := range messages {
		if m.Fix == nil {
			continue
		}
		if pred != nil && !pred(m) {
			continue
		}
		fixes = append(fixes, m)
	}
	if len(fixes) == 0 {
		return text, false
	}

	sort.SliceStable(fixes, func(i, j int) bool {
		a, b := fixes[i].Fix.Range, fixes[j].Fix.Range
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})

	offsets := NewOffsets(text)
	var out strings.Builder
	out.Grow(len(text))

	lastPos := -1
	cursor := 0
	applied := false
	for _, m := range fixes {
		start, end := m.Fix.Range[0], m.Fix.Range[1]
		if start > end || start <= lastPos || end > offsets.Len() || start < 0 {
			continue
		}
		startByte, endByte := offsets.Byte(start), offsets.Byte(end)
		out.WriteString(text[cursor:startByte])
		out.WriteString(m.Fix.Text)
		cursor = endByte
		lastPos = end
		applied = true
	}
	if !applied {
		return text, false
	}
	out.WriteString(text[cursor:])
	fixed := out.String()
	return fixed, fixed != text
}
