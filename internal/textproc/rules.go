package textproc

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Rule strips Suffix from a word when at least MinStem runes remain and the
// word is not one of the Exceptions.
type Rule struct {
	Suffix      string
	MinStem     int
	Replacement string
	Exceptions  map[string]struct{}
}

// applies reports whether the rule can rewrite word.
func (r Rule) applies(word string) bool {
	if !strings.HasSuffix(word, r.Suffix) {
		return false
	}
	if utf8.RuneCountInString(word) < utf8.RuneCountInString(r.Suffix)+r.MinStem {
		return false
	}
	_, excluded := r.Exceptions[word]
	return !excluded
}

// Step is an ordered group of rules. At most one rule of a step fires.
type Step struct {
	Name     string
	When     string // word must end with this for the step to run
	Else     string // step to run when this one leaves the word unchanged
	Fallback bool   // only reachable through another step's Else
	Rules    []Rule
}

// RuleSet is a parsed stemming table.
type RuleSet struct {
	steps  []*Step
	byName map[string]*Step
}

// Steps returns the steps in table order.
func (rs *RuleSet) Steps() []*Step {
	return rs.steps
}

// ParseRules reads a rule table. See resources/portuguese.rules for the
// format. Rules inside each step are reordered longest suffix first;
// equal-length suffixes keep table order.
func ParseRules(r io.Reader) (*RuleSet, error) {
	rs := &RuleSet{byName: make(map[string]*Step)}
	var current *Step

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			step, err := parseStepHeader(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if _, dup := rs.byName[step.Name]; dup {
				return nil, fmt.Errorf("line %d: duplicate step %q", lineNo, step.Name)
			}
			rs.steps = append(rs.steps, step)
			rs.byName[step.Name] = step
			current = step
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: rule outside of a step", lineNo)
		}
		rule, err := parseRule(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		current.Rules = append(current.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	if len(rs.steps) == 0 {
		return nil, fmt.Errorf("rule table has no steps")
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}

	for _, step := range rs.steps {
		sort.SliceStable(step.Rules, func(i, j int) bool {
			return utf8.RuneCountInString(step.Rules[i].Suffix) > utf8.RuneCountInString(step.Rules[j].Suffix)
		})
	}

	return rs, nil
}

func parseStepHeader(line string) (*Step, error) {
	if !strings.HasSuffix(line, "]") {
		return nil, fmt.Errorf("unterminated step header %q", line)
	}
	fields := strings.Fields(line[1 : len(line)-1])
	if len(fields) == 0 {
		return nil, fmt.Errorf("step header without a name")
	}

	step := &Step{Name: fields[0]}
	for _, opt := range fields[1:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "when":
			step.When = norm.NFC.String(value)
		case "else":
			step.Else = value
		case "fallback":
			step.Fallback = true
		default:
			return nil, fmt.Errorf("unknown step option %q", opt)
		}
	}
	return step, nil
}

func parseRule(line string) (Rule, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Rule{}, fmt.Errorf("rule needs suffix, minimum stem and replacement: %q", line)
	}

	minStem, err := strconv.Atoi(fields[1])
	if err != nil || minStem < 0 {
		return Rule{}, fmt.Errorf("invalid minimum stem %q", fields[1])
	}

	replacement := fields[2]
	if replacement == "-" {
		replacement = ""
	}

	rule := Rule{
		Suffix:      norm.NFC.String(fields[0]),
		MinStem:     minStem,
		Replacement: norm.NFC.String(replacement),
		Exceptions:  make(map[string]struct{}, len(fields)-3),
	}
	for _, exc := range fields[3:] {
		rule.Exceptions[norm.NFC.String(exc)] = struct{}{}
	}
	return rule, nil
}

// validate checks that every else= target exists and that no chain loops.
func (rs *RuleSet) validate() error {
	for _, step := range rs.steps {
		seen := map[string]bool{step.Name: true}
		for next := step.Else; next != ""; {
			target, ok := rs.byName[next]
			if !ok {
				return fmt.Errorf("step %q: unknown else target %q", step.Name, next)
			}
			if seen[next] {
				return fmt.Errorf("step %q: else chain loops at %q", step.Name, next)
			}
			seen[next] = true
			next = target.Else
		}
	}
	return nil
}

// RuleStemmer reduces tokens by running a RuleSet in table order.
type RuleStemmer struct {
	rules *RuleSet
}

// NewRuleStemmer returns a stemmer driven by rules.
func NewRuleStemmer(rules *RuleSet) *RuleStemmer {
	return &RuleStemmer{rules: rules}
}

// Stem applies every non-fallback step in order.
func (s *RuleStemmer) Stem(token string) string {
	word := token
	for _, step := range s.rules.steps {
		if step.Fallback {
			continue
		}
		word = s.run(step, word)
	}
	return word
}

// Name identifies the stemmer in model artifacts.
func (s *RuleStemmer) Name() string {
	return StemmerRules
}

func (s *RuleStemmer) run(step *Step, word string) string {
	if step.When != "" && !strings.HasSuffix(word, step.When) {
		return word
	}

	for _, rule := range step.Rules {
		if rule.applies(word) {
			return strings.TrimSuffix(word, rule.Suffix) + rule.Replacement
		}
	}

	if step.Else != "" {
		return s.run(s.rules.byName[step.Else], word)
	}
	return word
}
