package rewrite

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EnthusiasmSuffix is appended to dating messages that show no enthusiasm
const EnthusiasmSuffix = " - I'm looking forward to it!"

var (
	whitespaceRun    = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?])`)
	commaRun         = regexp.MustCompile(`,{2,}`)
	commaBeforeStop  = regexp.MustCompile(`,+([.!?])`)
	stopRun          = regexp.MustCompile(`([.!?])[.!?]+`)
	leadingJunk      = regexp.MustCompile(`^[\s,;:.!?-]+`)
	trailingJunk     = regexp.MustCompile(`[\s,;:-]+$`)
	questionRun      = regexp.MustCompile(`\?+`)
	questionBefore   = regexp.MustCompile(`\?+(\s+)(\p{Ll})`)
	emptyBrackets    = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	trailingQuestion = regexp.MustCompile(`\?+$`)

	enthusiasmMarkers = []string{"love", "excited", "looking forward"}
)

// Engine rewrites messages with the ordered rule catalogs. It holds no
// mutable state after New returns and is safe for concurrent use.
type Engine struct {
	minLength int
	plans     map[Context]*plan
	logger    *logger.Logger
}

// plan is the compiled rule sequence for one context
type plan struct {
	removals  []Rule
	scanners  []*scanner
	ruleCount int
}

// scanner applies one substitution catalog in a single left-to-right pass
type scanner struct {
	pattern *regexp.Regexp
	rules   []Rule
}

// New creates a rewrite engine from configuration
func New(cfg config.RewriteConfig, log *logger.Logger) (*Engine, error) {
	minLength := cfg.MinLength
	if minLength < 0 {
		return nil, &ConfigurationError{Field: "min_length", Value: fmt.Sprint(cfg.MinLength)}
	}
	if minLength == 0 {
		minLength = DefaultMinLength
	}

	set := DefaultRuleSet()
	disabled, err := resolveDisabled(set, cfg.DisabledRules)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		minLength: minLength,
		plans:     make(map[Context]*plan, 2),
		logger:    log,
	}

	for _, ctx := range []Context{ContextDating, ContextProfessional} {
		p := &plan{}
		p.removals = enabled(disabled, set.GlobalRemovals, set.ContextRemovals[ctx])
		for _, catalog := range [][]Rule{set.GlobalSubstitutions, set.ContextSubstitutions[ctx]} {
			if s := newScanner(enabled(disabled, catalog)); s != nil {
				p.scanners = append(p.scanners, s)
				p.ruleCount += len(s.rules)
			}
		}
		p.ruleCount += len(p.removals)
		engine.plans[ctx] = p
	}

	log.Info("Rewrite engine initialized",
		zap.Int("min_length", minLength),
		zap.Int("dating_rules", engine.plans[ContextDating].ruleCount),
		zap.Int("professional_rules", engine.plans[ContextProfessional].ruleCount),
		zap.Int("disabled_rules", len(disabled)),
	)

	return engine, nil
}

// resolveDisabled checks every configured rule name against the catalogs
func resolveDisabled(set RuleSet, names []string) (map[string]bool, error) {
	known := make(map[string]bool)
	for _, phrase := range set.Phrases() {
		known[phrase] = true
	}

	disabled := make(map[string]bool, len(names))
	for _, name := range names {
		phrase := strings.ToLower(strings.TrimSpace(name))
		if !known[phrase] {
			return nil, &ConfigurationError{Field: "disabled_rules", Value: name}
		}
		disabled[phrase] = true
	}
	return disabled, nil
}

func enabled(disabled map[string]bool, catalogs ...[]Rule) []Rule {
	var rules []Rule
	for _, catalog := range catalogs {
		for _, rule := range catalog {
			if !disabled[rule.Phrase] {
				rules = append(rules, rule)
			}
		}
	}
	return rules
}

func newScanner(rules []Rule) *scanner {
	if len(rules) == 0 {
		return nil
	}
	alternatives := make([]string, len(rules))
	for i, rule := range rules {
		alternatives[i] = "(" + phrasePattern(rule.Phrase) + ")"
	}
	// RE2 alternation is leftmost-first, so catalog order breaks ties at a position
	return &scanner{
		pattern: regexp.MustCompile(`(?i)(?:` + strings.Join(alternatives, "|") + `)`),
		rules:   rules,
	}
}

// MinLength returns the length guard threshold in characters
func (e *Engine) MinLength() int {
	return e.minLength
}

// Rewrite runs the normalize, strip, strengthen and polish stages followed
// by the length guard. Text never causes an error; only an unknown context does.
func (e *Engine) Rewrite(rawText string, ctx Context) (Result, error) {
	if !ctx.Valid() {
		return Result{}, &ConfigurationError{Field: "context", Value: string(ctx)}
	}

	working := normalize(rawText)
	if working == "" {
		return Result{Text: rawText, Changed: false}, nil
	}
	trimmed := strings.TrimSpace(rawText)

	p := e.plans[ctx]
	var applied []string

	working, applied = p.strip(working, applied)
	working, applied = p.strengthen(working, applied)
	polished, core := polish(working, ctx)

	if utf8.RuneCountInString(core) < e.minLength {
		e.logger.Debug("Length guard reverted rewrite",
			zap.String("context", string(ctx)),
			zap.Int("core_length", utf8.RuneCountInString(core)),
			zap.Int("min_length", e.minLength),
		)
		return Result{Text: trimmed, Changed: false}, nil
	}

	result := Result{
		Text:    polished,
		Changed: polished != trimmed,
		Applied: applied,
	}

	e.logger.Debug("Message rewritten",
		zap.String("context", string(ctx)),
		zap.Int("input_length", utf8.RuneCountInString(trimmed)),
		zap.Int("output_length", utf8.RuneCountInString(polished)),
		zap.Strings("rules", applied),
		zap.Bool("changed", result.Changed),
	)

	return result, nil
}

// normalize trims the input and canonicalizes it so literal phrases match
func normalize(rawText string) string {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return ""
	}

	// Chained transformers carry buffers, so each call builds its own
	canonical := transform.Chain(norm.NFC, runes.Map(foldPunctuation))
	out, _, err := transform.String(canonical, trimmed)
	if err != nil {
		return trimmed
	}
	return out
}

func foldPunctuation(r rune) rune {
	switch r {
	case '‘', '’', 'ʼ':
		return '\''
	case '“', '”':
		return '"'
	case '…':
		return '.'
	case '\u00a0':
		return ' '
	}
	return r
}

// strip applies every removal rule once, in catalog order
func (p *plan) strip(text string, applied []string) (string, []string) {
	for _, rule := range p.removals {
		stripped, removed := removeWholeWords(rule.Pattern, text)
		if removed == 0 {
			continue
		}
		text = stripped
		applied = append(applied, rule.Phrase)
	}
	return text, applied
}

func removeWholeWords(re *regexp.Regexp, text string) (string, int) {
	var b strings.Builder
	last, removed := 0, 0
	for m := findWholeWord(re, text, 0); m != nil; m = findWholeWord(re, text, m[1]) {
		b.WriteString(text[last:m[0]])
		last = m[1]
		removed++
	}
	if removed == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), removed
}

// findWholeWord returns the submatch indexes of the first match of re at or
// after from that is not glued to a word character. RE2's \b only knows
// ASCII, so "just" would otherwise match inside "justé".
func findWholeWord(re *regexp.Regexp, text string, from int) []int {
	for from <= len(text) {
		m := re.FindStringSubmatchIndex(text[from:])
		if m == nil {
			return nil
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += from
			}
		}
		if isWholeWord(text, m[0], m[1]) {
			return m
		}
		_, size := utf8.DecodeRuneInString(text[m[0]:])
		from = m[0] + max(size, 1)
	}
	return nil
}

func isWholeWord(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// strengthen runs the global then the context substitution catalog
func (p *plan) strengthen(text string, applied []string) (string, []string) {
	for _, s := range p.scanners {
		text, applied = s.apply(text, applied)
	}
	return text, applied
}

func (s *scanner) apply(text string, applied []string) (string, []string) {
	m := findWholeWord(s.pattern, text, 0)
	if m == nil {
		return text, applied
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for ; m != nil; m = findWholeWord(s.pattern, text, m[1]) {
		b.WriteString(text[last:m[0]])
		for i, rule := range s.rules {
			if m[2*(i+1)] >= 0 {
				b.WriteString(rule.Replacement)
				applied = appendOnce(applied, rule.Phrase)
				break
			}
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), applied
}

func appendOnce(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

// polish returns the finished text and the core it was built from.
// The core is the tidied, capitalized text before the context finisher.
func polish(text string, ctx Context) (string, string) {
	text = capitalize(tidy(text))
	core := text

	switch ctx {
	case ContextDating:
		text = questionBefore.ReplaceAllStringFunc(text, capitalizeAfterStop)
		text = tidy(questionRun.ReplaceAllString(text, "."))
		if !hasEnthusiasm(text) {
			text = strings.TrimRight(text, ".!")
			text = trailingJunk.ReplaceAllString(text, "") + EnthusiasmSuffix
		}
	case ContextProfessional:
		text = trailingQuestion.ReplaceAllString(text, ".")
	}

	return ensureTerminal(text), core
}

// tidy collapses whitespace and the punctuation artifacts stripping leaves
func tidy(text string) string {
	text = emptyBrackets.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = commaRun.ReplaceAllString(text, ",")
	text = commaBeforeStop.ReplaceAllString(text, "$1")
	text = stopRun.ReplaceAllString(text, "$1")
	text = leadingJunk.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// capitalize upper-cases the first letter unless the text opens with a
// number, as in "3pm works"
func capitalize(text string) string {
	for i, r := range text {
		if unicode.IsDigit(r) {
			return text
		}
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsUpper(r) {
			return text
		}
		return text[:i] + string(unicode.ToUpper(r)) + text[i+utf8.RuneLen(r):]
	}
	return text
}

// capitalizeAfterStop turns "?? so" into ". So"
func capitalizeAfterStop(match string) string {
	rest := strings.TrimLeft(match, "?")
	r, size := utf8.DecodeLastRuneInString(rest)
	return "." + rest[:len(rest)-size] + string(unicode.ToUpper(r))
}

func hasEnthusiasm(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range enthusiasmMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func ensureTerminal(text string) string {
	text = trailingJunk.ReplaceAllString(text, "")
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") {
		return text
	}
	return text + "."
}
