package usecase

import (
	"regexp"
	"strings"
)

var (
	answerHeading    = regexp.MustCompile(`(?i)\*\*3\.\s*Agent Answer:\*\*\s*`)
	nextSection      = regexp.MustCompile(`\*\*\d+\.`)
	answerLabel      = regexp.MustCompile(`(?i)Agent Answer[:\s]*`)
	trailingSections = regexp.MustCompile(`(?i)User Query|Resources Search`)
)

// ExtractAnswer returns the "Agent Answer" section of a structured agent
// message. Without a numbered heading it tries a bare "Agent Answer" label,
// and without either it returns the message unchanged.
func ExtractAnswer(msg string) string {
	if msg == "" {
		return ""
	}
	if loc := answerHeading.FindStringIndex(msg); loc != nil {
		return strings.TrimSpace(cutAt(msg[loc[1]:], nextSection))
	}
	if loc := answerLabel.FindStringIndex(msg); loc != nil {
		return strings.TrimSpace(cutAt(msg[loc[1]:], trailingSections))
	}
	return msg
}

func cutAt(s string, re *regexp.Regexp) string {
	if loc := re.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}
