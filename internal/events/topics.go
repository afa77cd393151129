package events

import "strings"

// MatchTopic matches a dot-separated topic against a pattern with NATS-style
// wildcards: "*" matches a single segment, ">" matches one or more remaining
// segments. "drip.stream.*" matches "drip.stream.started"; "drip.>" matches
// every drip topic.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			// ">" matches one or more remaining segments.
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}
