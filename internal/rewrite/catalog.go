package rewrite

import (
	"regexp"
	"slices"
	"strings"
)

// RuleSet groups the four ordered catalogs. Removals always run before
// substitutions and global rules before context rules.
type RuleSet struct {
	GlobalRemovals       []Rule
	GlobalSubstitutions  []Rule
	ContextRemovals      map[Context][]Rule
	ContextSubstitutions map[Context][]Rule
}

// Longer phrases sit ahead of any shorter catalog phrase they contain.
var defaultRuleSet = RuleSet{
	GlobalRemovals: removals(
		"maybe",
		"perhaps",
		"possibly",
		"if you want",
		"no pressure though",
		"no pressure",
		"sorry to bother you",
		"sorry to bother",
		"sorry",
		"just",
		"i guess",
		"kind of",
		"sort of",
		"i was wondering if",
		"if possible",
		"if that's okay",
		"if you don't mind",
		"i was hoping",
	),
	GlobalSubstitutions: substitutions(
		"would you like to", "let's",
		"do you want to", "let's",
		"i think", "I believe",
		"i feel like", "I believe",
		"could we", "let's",
		"can we", "let's",
		"should we", "let's",
		"i'll try to", "I will",
		"i hope to", "I plan to",
	),
	ContextRemovals: map[Context][]Rule{
		ContextDating: removals(
			"no worries if not",
			"if you're free",
			"if you're up for it",
			"or whatever",
			"haha",
			"lol",
		),
		ContextProfessional: removals(
			"quick question",
			"to be honest",
			"does that make sense",
			"if that makes sense",
			"i hate to ask",
			"hopefully",
		),
	},
	ContextSubstitutions: map[Context][]Rule{
		ContextDating: substitutions(
			"you'd like to", "let's",
			"hang out", "spend time together",
			"grab coffee", "get coffee",
			"grab a drink", "get a drink",
			"at some point", "this week",
			"sometime", "this week",
		),
		ContextProfessional: substitutions(
			// "i think" has already become "I believe" in the global pass
			"i believe we should", "I recommend we",
			"could you please", "please",
			"can you please", "please",
			"when you have time", "at your earliest convenience",
			"when you get a chance", "at your earliest convenience",
			"if you have time", "at your earliest convenience",
			"we could", "let's",
			"touch base", "meet",
			"discuss", "review",
			"let me know", "please confirm",
		),
	},
}

// DefaultRuleSet returns a copy of the built-in catalogs
func DefaultRuleSet() RuleSet {
	set := RuleSet{
		GlobalRemovals:       slices.Clone(defaultRuleSet.GlobalRemovals),
		GlobalSubstitutions:  slices.Clone(defaultRuleSet.GlobalSubstitutions),
		ContextRemovals:      make(map[Context][]Rule, len(defaultRuleSet.ContextRemovals)),
		ContextSubstitutions: make(map[Context][]Rule, len(defaultRuleSet.ContextSubstitutions)),
	}
	for ctx, rules := range defaultRuleSet.ContextRemovals {
		set.ContextRemovals[ctx] = slices.Clone(rules)
	}
	for ctx, rules := range defaultRuleSet.ContextSubstitutions {
		set.ContextSubstitutions[ctx] = slices.Clone(rules)
	}
	return set
}

// Phrases lists every rule phrase in catalog order, without duplicates
func (s RuleSet) Phrases() []string {
	var phrases []string
	add := func(rules []Rule) {
		for _, rule := range rules {
			if !slices.Contains(phrases, rule.Phrase) {
				phrases = append(phrases, rule.Phrase)
			}
		}
	}
	add(s.GlobalRemovals)
	add(s.GlobalSubstitutions)
	for _, ctx := range []Context{ContextDating, ContextProfessional} {
		add(s.ContextRemovals[ctx])
		add(s.ContextSubstitutions[ctx])
	}
	return phrases
}

func removals(phrases ...string) []Rule {
	rules := make([]Rule, 0, len(phrases))
	for _, phrase := range phrases {
		rules = append(rules, Rule{
			Kind:    Removal,
			Phrase:  phrase,
			Pattern: regexp.MustCompile(`(?i)` + phrasePattern(phrase)),
		})
	}
	return rules
}

func substitutions(pairs ...string) []Rule {
	if len(pairs)%2 != 0 {
		panic("rewrite: substitutions need phrase/replacement pairs")
	}
	rules := make([]Rule, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		rules = append(rules, Rule{
			Kind:        Substitution,
			Phrase:      pairs[i],
			Replacement: pairs[i+1],
			Pattern:     regexp.MustCompile(`(?i)` + phrasePattern(pairs[i])),
		})
	}
	return rules
}

// phrasePattern matches a literal phrase on whole-word boundaries,
// letting any whitespace run stand in for a single space.
func phrasePattern(phrase string) string {
	words := strings.Fields(phrase)
	for i, word := range words {
		words[i] = regexp.QuoteMeta(word)
	}
	return `\b` + strings.Join(words, `\s+`) + `\b`
}
