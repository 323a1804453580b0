// Package proposal turns raw completion text into structured edit proposals.
//
// Completion output is unreliable text, so every parse path degrades to a
// usable result instead of returning an error. Parsing runs as an ordered
// chain of attempts; the first attempt producing a structured result wins,
// and the final link of each chain accepts any input.
package proposal

import (
	"regexp"
	"strings"
)

// Proposal is a parsed chat completion. Answer is always set; the pointer
// fields are nil when the completion proposed no change for that field.
// Proposals are constructed only by this package.
type Proposal struct {
	Answer    string
	Title     *string
	PublicMD  *string
	PrivateMD *string
}

// Refinement is a parsed delimiter-block completion for the markdown
// regeneration path.
type Refinement struct {
	PublicMD  string
	PrivateMD string
}

var failurePhrases = []string{
	"i don't know",
	"i do not know",
	"i cannot answer",
	"i can't answer",
}

// IsSemanticFailure reports whether an answer admits it could not be
// answered. Detection is case-insensitive containment.
func IsSemanticFailure(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range failurePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Section headers of the labeled-section template, in order. The pattern is
// permissive about surrounding whitespace and matches headers on their own
// line.
var sectionPattern = regexp.MustCompile(`(?m)^[ \t]*(ANSWER|UPDATED_TITLE|UPDATED_PUBLIC_MD|UPDATED_PRIVATE_MD):[ \t]*$|^[ \t]*(ANSWER|UPDATED_TITLE|UPDATED_PUBLIC_MD|UPDATED_PRIVATE_MD):[ \t]*(\S[^\n]*)$`)

// Parse extracts a Proposal from a labeled-section completion. When the
// ANSWER header is absent entirely, the whole text becomes the answer and no
// structured field is set.
func Parse(raw string) Proposal {
	sections := splitSections(raw)
	answer, ok := sections["ANSWER"]
	if !ok {
		return Proposal{Answer: strings.TrimSpace(raw)}
	}

	p := Proposal{Answer: strings.TrimSpace(answer)}
	if v := strings.TrimSpace(sections["UPDATED_TITLE"]); v != "" {
		p.Title = &v
	}
	if v := strings.TrimSpace(sections["UPDATED_PUBLIC_MD"]); v != "" {
		p.PublicMD = &v
	}
	if v := strings.TrimSpace(sections["UPDATED_PRIVATE_MD"]); v != "" {
		p.PrivateMD = &v
	}
	return p
}

// splitSections maps each present header to the text between it and the next
// header. A header with text on the same line contributes that text first.
func splitSections(raw string) map[string]string {
	matches := sectionPattern.FindAllStringSubmatchIndex(raw, -1)
	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		name := submatch(raw, m, 1)
		inline := ""
		if name == "" {
			name = submatch(raw, m, 2)
			inline = submatch(raw, m, 3)
		}
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := raw[m[1]:end]
		if inline != "" {
			body = inline + body
		}
		if _, seen := sections[name]; !seen {
			sections[name] = body
		}
	}
	return sections
}

func submatch(raw string, m []int, group int) string {
	if 2*group+1 >= len(m) || m[2*group] < 0 {
		return ""
	}
	return raw[m[2*group]:m[2*group+1]]
}

// ParseRefinement extracts a Refinement from a delimiter-block completion.
// Attempts, in order: exact delimiters, a heuristic line scan, then the whole
// text as public markdown.
func ParseRefinement(raw string) Refinement {
	for _, attempt := range []func(string) (Refinement, bool){
		parseExactDelimiters,
		parseHeuristicDelimiters,
	} {
		if r, ok := attempt(raw); ok {
			return r
		}
	}
	return Refinement{PublicMD: strings.TrimSpace(raw)}
}

var (
	publicBlockPattern  = regexp.MustCompile(`(?s)### PUBLIC_MD_START\s*(.*?)\s*### PUBLIC_MD_END`)
	privateBlockPattern = regexp.MustCompile(`(?s)### PRIVATE_MD_START\s*(.*?)\s*### PRIVATE_MD_END`)
)

func parseExactDelimiters(raw string) (Refinement, bool) {
	pub := publicBlockPattern.FindStringSubmatch(raw)
	priv := privateBlockPattern.FindStringSubmatch(raw)
	if pub == nil && priv == nil {
		return Refinement{}, false
	}
	var r Refinement
	if pub != nil {
		r.PublicMD = pub[1]
	}
	if priv != nil {
		r.PrivateMD = priv[1]
	}
	return r, true
}

// parseHeuristicDelimiters scans lines for markers that merely mention
// public/private plus start/end, collecting the lines between each pair.
func parseHeuristicDelimiters(raw string) (Refinement, bool) {
	lines := strings.Split(raw, "\n")
	var pub, priv []string
	section := ""
	found := false
	for _, line := range lines {
		lowered := strings.ToLower(line)
		switch {
		case strings.Contains(lowered, "public") && strings.Contains(lowered, "start"):
			section = "public"
			found = true
			continue
		case strings.Contains(lowered, "public") && strings.Contains(lowered, "end"):
			section = ""
			continue
		case strings.Contains(lowered, "private") && strings.Contains(lowered, "start"):
			section = "private"
			found = true
			continue
		case strings.Contains(lowered, "private") && strings.Contains(lowered, "end"):
			section = ""
			continue
		}
		switch section {
		case "public":
			pub = append(pub, line)
		case "private":
			priv = append(priv, line)
		}
	}
	if !found {
		return Refinement{}, false
	}
	return Refinement{
		PublicMD:  strings.TrimSpace(strings.Join(pub, "\n")),
		PrivateMD: strings.TrimSpace(strings.Join(priv, "\n")),
	}, true
}
