// Package lexical is the synchronous fast path: it matches prompt keywords
// and explicit file mentions against project paths without any I/O.
package lexical

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"ctxasm/internal/model"
)

// DefaultMaxCandidates caps the number of lexical candidates.
const DefaultMaxCandidates = 50

// keywordGroup maps prompt words to the path stems they select.
type keywordGroup struct {
	name     string
	triggers []string
	stems    []string
}

var vocabulary = []keywordGroup{
	{"auth", []string{"auth", "login", "logout", "signin", "signup", "session", "password"},
		[]string{"auth", "login", "logout", "signin", "signup", "session", "password"}},
	{"route", []string{"route", "router", "routing", "endpoint"},
		[]string{"route", "router", "routes", "routing", "endpoint"}},
	{"api", []string{"api"}, []string{"api"}},
	{"component", []string{"component", "widget", "button", "form", "modal"},
		[]string{"component", "widget", "button", "form", "modal"}},
	{"config", []string{"config", "configuration", "settings", "env"},
		[]string{"config", "settings", "env"}},
	{"test", []string{"test", "tests", "spec"}, []string{"test", "tests", "spec", "__tests__"}},
	{"style", []string{"style", "css", "theme"}, []string{"style", "styles", "css", "theme"}},
	{"database", []string{"database", "db", "schema", "migration", "model"},
		[]string{"database", "db", "schema", "migration", "model"}},
	{"hook", []string{"hook", "hooks"}, []string{"hook", "hooks"}},
	{"page", []string{"page", "pages", "layout"}, []string{"page", "pages", "layout"}},
}

var (
	mentionPattern = regexp.MustCompile(`(?i)\b(?:(?:edit|modify|update|change|fix|in)\s+|file:\s*)([A-Za-z0-9_./\\-]+)`)
	tokenPattern   = regexp.MustCompile(`[A-Za-z0-9_./\\-]+`)
	extPattern     = regexp.MustCompile(`\.[A-Za-z0-9]{1,6}$`)
)

var stopWords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"and": true, "for": true, "with": true, "from": true, "into": true,
	"file": true, "files": true, "code": true, "our": true, "your": true,
	"all": true, "some": true, "any": true, "its": true, "there": true,
	"order": true, "case": true, "place": true,
}

// Matcher finds lexical candidates.
type Matcher struct {
	MaxCandidates int
}

// New creates a matcher with the given cap. A non-positive cap uses
// DefaultMaxCandidates.
func New(maxCandidates int) *Matcher {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Matcher{MaxCandidates: maxCandidates}
}

// hit is one matched path with what matched it.
type hit struct {
	path      string
	mention   bool
	matchedBy []string
}

// Match returns candidates with Similarity 1.0 and the lexical source.
// Files named explicitly in the prompt are flagged Mentioned.
func (m *Matcher) Match(prompt string, paths []string) []model.Candidate {
	hits := m.match(prompt, paths)
	out := make([]model.Candidate, len(hits))
	for i, h := range hits {
		out[i] = model.Candidate{
			Path:       h.path,
			Similarity: 1.0,
			Sources:    []model.Source{model.SourceLexical},
			Mentioned:  h.mention,
		}
	}
	return out
}

// Explain returns each matched path with the mentions and keyword groups
// that selected it.
func (m *Matcher) Explain(prompt string, paths []string) map[string][]string {
	hits := m.match(prompt, paths)
	out := make(map[string][]string, len(hits))
	for _, h := range hits {
		out[h.path] = h.matchedBy
	}
	return out
}

func (m *Matcher) match(prompt string, paths []string) []hit {
	mentions := Mentions(prompt)
	groups := triggeredGroups(prompt)
	if len(mentions) == 0 && len(groups) == 0 {
		return nil
	}

	var hits []hit
	for _, p := range paths {
		lower := strings.ToLower(p)
		h := hit{path: p}
		for _, mention := range mentions {
			if strings.Contains(lower, mention) {
				h.mention = true
				h.matchedBy = append(h.matchedBy, "mention:"+mention)
			}
		}
		if len(groups) > 0 {
			words := segmentWords(lower)
			for _, g := range groups {
				if matchesStem(words, g.stems) {
					h.matchedBy = append(h.matchedBy, "keyword:"+g.name)
				}
			}
		}
		if len(h.matchedBy) > 0 {
			hits = append(hits, h)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.mention != b.mention {
			return a.mention
		}
		if len(a.path) != len(b.path) {
			return len(a.path) < len(b.path)
		}
		return a.path < b.path
	})

	limit := m.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Mentions extracts explicit file references from a prompt: tokens after an
// edit verb and any token that looks like a path. Results are lowercased,
// deduplicated and in first-seen order.
func Mentions(prompt string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		tok := cleanToken(raw)
		if len(tok) < 3 || stopWords[tok] || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, m := range mentionPattern.FindAllStringSubmatch(prompt, -1) {
		add(m[1])
	}
	for _, tok := range tokenPattern.FindAllString(prompt, -1) {
		t := strings.TrimRight(tok, ".,;:!?")
		if strings.ContainsAny(t, "/\\") || extPattern.MatchString(t) {
			add(t)
		}
	}
	return out
}

func cleanToken(raw string) string {
	tok := strings.TrimRight(raw, ".,;:!?)'\"`")
	tok = strings.ToLower(strings.ReplaceAll(tok, "\\", "/"))
	tok = strings.TrimPrefix(tok, "./")
	return tok
}

// triggeredGroups matches whole prompt words or their plural, so "format"
// does not select the form group. Path stems match word prefixes instead,
// which lets camelCase names like LoginForm hit "login".
func triggeredGroups(prompt string) []keywordGroup {
	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var groups []keywordGroup
	for _, g := range vocabulary {
	search:
		for _, w := range words {
			for _, t := range g.triggers {
				if w == t || w == t+"s" {
					groups = append(groups, g)
					break search
				}
			}
		}
	}
	return groups
}

// segmentWords splits a lowercased path into the words of its segments with
// the final extension stripped: "src/auth/login-form.tsx" gives
// [src auth login form].
func segmentWords(lowerPath string) []string {
	trimmed := strings.TrimSuffix(lowerPath, path.Ext(lowerPath))
	return strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '/' || r == '\\' || r == '.' || r == '-' || r == '_'
	})
}

func matchesStem(words, stems []string) bool {
	for _, w := range words {
		for _, s := range stems {
			if w == s || (len(s) >= 4 && strings.HasPrefix(w, s)) {
				return true
			}
		}
	}
	return false
}
