package usecase

import (
	"regexp"
	"strings"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

var (
	headingMarks   = regexp.MustCompile(`(?m)^#+\s*`)
	inlineHashes   = regexp.MustCompile(`#+(\s|$)`)
	articleStart   = regexp.MustCompile(`(?i)Article\s+\d+`)
	articleTitle   = regexp.MustCompile(`(?i)Article\s+\d+\s*[-–:]\s*(.+)`)
	contentsLabel  = regexp.MustCompile(`(?i)Contents\s*\d*`)
	citationsLabel = regexp.MustCompile(`(?i)Citations\s*\d*`)
	bulletPrefix   = regexp.MustCompile(`^[-•*]\s*`)
	citationURL    = regexp.MustCompile(`\((https?://[^\s)]+)\)`)
	digestTitle    = regexp.MustCompile(`(?m)^Scout Pulse Portfolio Digest.*$`)
)

// ParseDigest splits digest markdown into its numbered articles. Blocks
// without an "Article N - title" line are dropped.
func ParseDigest(raw string) (string, []model.DigestArticle) {
	text := strings.NewReplacer("\r", "", "\u00ad", "").Replace(raw)
	text = headingMarks.ReplaceAllString(text, "")
	text = inlineHashes.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(text)

	title := "Portfolio Digest"
	if m := digestTitle.FindString(text); m != "" {
		title = strings.TrimSpace(m)
	}

	starts := articleStart.FindAllStringIndex(text, -1)
	var out []model.DigestArticle
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := strings.TrimSpace(text[loc[0]:end])
		m := articleTitle.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		art := model.DigestArticle{Title: strings.TrimSpace(firstLine(m[1]))}
		art.Points = parsePoints(block)
		art.Citations = parseCitations(block)
		out = append(out, art)
	}
	return title, out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func parsePoints(block string) []string {
	loc := contentsLabel.FindStringIndex(block)
	if loc == nil {
		return nil
	}
	body := block[loc[1]:]
	if c := citationsLabel.FindStringIndex(body); c != nil {
		body = body[:c[0]]
	}
	var points []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			points = append(points, line)
		}
	}
	return points
}

func parseCitations(block string) []model.Citation {
	loc := citationsLabel.FindStringIndex(block)
	if loc == nil {
		return nil
	}
	var out []model.Citation
	for _, line := range strings.Split(block[loc[1]:], "\n") {
		line = strings.TrimSpace(line)
		m := citationURL.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t := strings.NewReplacer("[", "", "]", "").Replace(line)
		t = strings.TrimSpace(strings.Replace(t, m[0], "", 1))
		if t == "" {
			t = "Source"
		}
		out = append(out, model.Citation{Title: t, URL: m[1]})
	}
	return out
}
