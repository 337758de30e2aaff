package categories

import "strings"

// NormalizeDescription folds a transaction description for exact-match
// comparison: lowercase, whitespace and common merchant punctuation
// removed. "Starbucks " and "starbucks" collide on purpose.
func NormalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\'', '’', '&', '.', ',':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// KeywordOverride corrects a known-bad vendor categorization by merchant
// keyword, matched against the normalized description.
type KeywordOverride struct {
	Keyword  string
	Category Category
}

// keywordOverrides is scanned in full for every description, and a later
// matching entry overwrites an earlier one (last match wins). Entries are
// appended over time as increasingly specific corrections, so "uber eats"
// must beat plain "uber" by coming after it.
var keywordOverrides = []KeywordOverride{
	{"coffee", CoffeeShop},
	{"starbucks", CoffeeShop},
	{"dunkin", CoffeeShop},
	{"traderjoe", FoodAndDrink},
	{"wholefoods", FoodAndDrink},
	{"aldi", FoodAndDrink},
	{"foodlion", FoodAndDrink},
	{"wegman", FoodAndDrink},
	{"kroger", FoodAndDrink},
	{"safeway", FoodAndDrink},
	{"mcdonalds", FastFood},
	{"burgerking", FastFood},
	{"tacobell", FastFood},
	{"wendys", FastFood},
	{"chipotle", FastFood},
	{"uber", Taxi},
	{"lyft", Taxi},
	{"ubereats", Restaurants},
	{"doordash", Restaurants},
	{"grubhub", Restaurants},
	{"amazon", Shops},
	{"amazonprime", BillsAndUtilities},
	{"netflix", Entertainment},
	{"spotify", Entertainment},
	{"deltaair", Airlines},
	{"unitedairlines", Airlines},
	{"southwestair", Airlines},
	{"shelloil", Car},
	{"exxon", Car},
	{"chevron", Car},
	{"cvspharmacy", Medical},
	{"walgreens", Medical},
	{"petco", Pets},
	{"petsmart", Pets},
}

// ApplyOverrides runs the keyword table against a raw description. The
// boolean is false when no keyword matched.
func ApplyOverrides(description string) (Category, bool) {
	norm := NormalizeDescription(description)
	cat := Uncategorized
	matched := false
	for _, o := range keywordOverrides {
		if strings.Contains(norm, o.Keyword) {
			cat = o.Category
			matched = true
		}
	}
	return cat, matched
}
