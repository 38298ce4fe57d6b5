package compose

// MaxReplyChars is the transport's outbound message ceiling.
const MaxReplyChars = 1600

// TruncateReply bounds s to max characters without splitting a multi-byte
// character. The cut is by rune count, so the result is always valid UTF-8.
func TruncateReply(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
