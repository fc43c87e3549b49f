package diffshape

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// NoiseRuleKind selects how a NoiseRule pattern is matched against a path.
type NoiseRuleKind string

const (
	// RuleBasename matches the exact file name.
	RuleBasename NoiseRuleKind = "basename"
	// RuleDir matches any directory segment of the path.
	RuleDir NoiseRuleKind = "dir"
	// RuleSuffix matches the end of the path.
	RuleSuffix NoiseRuleKind = "suffix"
	// RuleContains matches anywhere in the path.
	RuleContains NoiseRuleKind = "contains"
	// RuleGitignore matches a .gitignore pattern. A negated pattern ("!x")
	// marks matching paths as not noise and stops classification.
	RuleGitignore NoiseRuleKind = "gitignore"
)

// NoiseRule is one entry of the ordered noise table.
type NoiseRule struct {
	Name    string
	Kind    NoiseRuleKind
	Pattern string
}

// Match reports whether p (slash separated) is matched by the rule. A
// negated gitignore rule never reports a match.
func (r NoiseRule) Match(p string) bool {
	return r.decide(p, nil) == gitignore.Exclude
}

func (r NoiseRule) decide(p string, compiled gitignore.Pattern) gitignore.MatchResult {
	hit := false
	switch r.Kind {
	case RuleBasename:
		hit = path.Base(p) == r.Pattern
	case RuleDir:
		segments := strings.Split(p, "/")
		for _, seg := range segments[:len(segments)-1] {
			if seg == r.Pattern {
				hit = true
				break
			}
		}
	case RuleSuffix:
		hit = strings.HasSuffix(p, r.Pattern)
	case RuleContains:
		hit = strings.Contains(strings.ToLower(p), strings.ToLower(r.Pattern))
	case RuleGitignore:
		if compiled == nil {
			compiled = gitignore.ParsePattern(r.Pattern, nil)
		}
		return compiled.Match(strings.Split(p, "/"), false)
	}
	if hit {
		return gitignore.Exclude
	}
	return gitignore.NoMatch
}

// NoiseConfig holds the ordered rule table of a NoiseClassifier.
type NoiseConfig struct {
	Rules []NoiseRule
}

// DefaultNoiseRules returns a fresh copy of the built-in noise table.
func DefaultNoiseRules() []NoiseRule {
	basenames := []string{
		"Cargo.lock", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "poetry.lock",
		"Pipfile.lock", "go.sum", "composer.lock", "Gemfile.lock", "bun.lockb", "npm-shrinkwrap.json",
	}
	metadata := []string{".gitignore", ".DS_Store"}
	dirs := []string{"vendor", "node_modules", "third_party", "target", "dist", "__pycache__"}
	suffixes := []string{".min.js", ".min.css", ".pb.go", "_gen.go", ".generated.go", ".map", ".snap"}

	rules := make([]NoiseRule, 0, len(basenames)+len(metadata)+len(dirs)+len(suffixes)+1)
	for _, b := range basenames {
		rules = append(rules, NoiseRule{Name: "lockfile:" + b, Kind: RuleBasename, Pattern: b})
	}
	for _, m := range metadata {
		rules = append(rules, NoiseRule{Name: "metadata:" + m, Kind: RuleBasename, Pattern: m})
	}
	for _, d := range dirs {
		rules = append(rules, NoiseRule{Name: "vendored:" + d, Kind: RuleDir, Pattern: d})
	}
	for _, s := range suffixes {
		rules = append(rules, NoiseRule{Name: "generated:" + s, Kind: RuleSuffix, Pattern: s})
	}
	rules = append(rules, NoiseRule{Name: "generated:marker", Kind: RuleContains, Pattern: "generated"})
	return rules
}

// GlobRules turns the lines of a .gitignore style file into rules named
// "source:pattern". Later lines override earlier ones as in git, so the
// rules come back in reverse line order for first-match classification.
func GlobRules(source string, patterns []string) []NoiseRule {
	rules := make([]NoiseRule, 0, len(patterns))
	for i := len(patterns) - 1; i >= 0; i-- {
		p := strings.TrimSpace(patterns[i])
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		rules = append(rules, NoiseRule{Name: source + ":" + p, Kind: RuleGitignore, Pattern: p})
	}
	return rules
}

type compiledRule struct {
	NoiseRule
	pattern gitignore.Pattern
}

// NoiseClassifier tags paths as noise by the first matching rule.
type NoiseClassifier struct {
	rules []compiledRule
}

// NewNoiseClassifier copies the rule table; a nil table means DefaultNoiseRules.
func NewNoiseClassifier(cfg NoiseConfig) *NoiseClassifier {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultNoiseRules()
	}
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		compiled[i] = compiledRule{NoiseRule: r}
		if r.Kind == RuleGitignore {
			compiled[i].pattern = gitignore.ParsePattern(r.Pattern, nil)
		}
	}
	return &NoiseClassifier{rules: compiled}
}

// Classify returns whether path is noise and the name of the rule that
// decided it. A matching negated rule returns false with an empty name.
func (c *NoiseClassifier) Classify(p string) (bool, string) {
	for _, r := range c.rules {
		switch r.decide(p, r.pattern) {
		case gitignore.Exclude:
			return true, r.Name
		case gitignore.Include:
			return false, ""
		}
	}
	return false, ""
}
