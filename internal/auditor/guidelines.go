package auditor

import "strings"

// extractGuidelines pulls one guideline per bullet or numbered line out of a
// technical brief (§4.3.2 step 2 "bullets extracted from a technical
// brief"). Lines that don't look like a list item are ignored; a brief with
// no recognizable bullets yields the whole text as a single guideline so
// compliance mode still has something to check.
func extractGuidelines(brief string) []string {
	var out []string
	for _, line := range strings.Split(brief, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if text, ok := stripBulletPrefix(line); ok {
			if text != "" {
				out = append(out, text)
			}
			continue
		}
		if text := stripLeadingNumber(line); text != line {
			if text != "" {
				out = append(out, text)
			}
		}
	}
	if len(out) == 0 {
		if t := strings.TrimSpace(brief); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripBulletPrefix recognizes a "-", "*", or "•" bullet marker.
func stripBulletPrefix(line string) (string, bool) {
	for _, marker := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	return "", false
}

// stripLeadingNumber strips a "1. " / "2) " style prefix, returning line
// unchanged if none is present.
func stripLeadingNumber(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	rest := line[i:]
	if strings.HasPrefix(rest, ". ") {
		return strings.TrimSpace(rest[2:])
	}
	if strings.HasPrefix(rest, ") ") {
		return strings.TrimSpace(rest[2:])
	}
	return line
}
