package categories

// RuleSet is a user's category rules keyed by normalized description.
// Build one per sync run and treat it as immutable for the duration, so
// every transaction in the run sees the same rule snapshot.
type RuleSet map[string]Category

func NewRuleSet() RuleSet { return make(RuleSet) }

// Add registers a rule; the description is normalized on the way in.
func (r RuleSet) Add(description string, cat Category) {
	r[NormalizeDescription(description)] = cat
}

// Lookup finds the rule for a description, if any.
func (r RuleSet) Lookup(description string) (Category, bool) {
	c, ok := r[NormalizeDescription(description)]
	return c, ok
}

// Resolve assigns the single category for a transaction at ingestion
// time. Precedence, highest first:
//
//  1. an exact user rule on the normalized description,
//  2. the keyword override table (last match wins),
//  3. the heuristic classifier plus disambiguation over the raw hints.
//
// The second return lists hints the classifier could not place; callers
// log or count them so taxonomy gaps stay visible.
func Resolve(rawHints []string, description string, rules RuleSet) (Category, []string) {
	if rules != nil {
		if c, ok := rules.Lookup(description); ok {
			return c, nil
		}
	}

	if c, ok := ApplyOverrides(description); ok {
		return c, nil
	}

	var cats []Category
	var gaps []string
	for _, h := range rawHints {
		c, ok := Classify(h)
		if !ok && h != "" {
			gaps = append(gaps, h)
		}
		cats = append(cats, c)
	}
	return Disambiguate(cats), gaps
}
