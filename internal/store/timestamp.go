package store

import "time"

// checkTimestampLayout is YYYYMMDDTHHMMSSffffff in UTC. Lexicographic sort
// over this format equals chronological sort, so EvidenceStore can find
// the newest check result for a condition by sorting filenames.
const checkTimestampLayout = "20060102T150405.000000"

// FormatCheckTimestamp renders t in the layout used for check-result and
// baseline filenames: YYYYMMDDTHHMMSSffffff, UTC, no separators.
func FormatCheckTimestamp(t time.Time) string {
	s := t.UTC().Format(checkTimestampLayout)
	// Format renders "20060102T150405.000000"; strip the '.' to match the
	// spec's separator-free layout.
	out := make([]byte, 0, len(s)-1)
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
