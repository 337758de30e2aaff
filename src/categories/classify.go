package categories

import (
	"sort"
	"strings"
)

// classifyRule matches a lowercased raw hint, either as a substring or as
// the whole string. Order matters: the first matching rule wins, so more
// specific terms must come before the generic ones they contain ("fast
// food" before "food").
type classifyRule struct {
	term  string
	exact bool
	cat   Category
}

var classifyRules = []classifyRule{
	{"uncategorized", true, Uncategorized},
	{"fast food", false, FastFood},
	{"food", false, FoodAndDrink},
	{"grocer", false, FoodAndDrink},
	{"restau", false, Restaurants},
	{"travel", false, Travel},
	{"airlines", false, Airlines},
	{"recrea", false, Recreation},
	{"gym", false, GymsAndFitness},
	{"fitness", false, GymsAndFitness},
	{"health", false, GymsAndFitness},
	{"transfer", false, Transfer},
	{"deposit", false, Deposit},
	{"payroll", false, Payroll},
	{"income", false, Payroll},
	{"credit c", false, CreditCard},
	{"debit", true, Debit},
	// "coffee shop" must precede "shop" or the substring rule shadows it.
	{"coffee shop", true, CoffeeShop},
	{"shop", false, Shops},
	{"payment", true, Payment},
	{"taxi", true, Taxi},
	{"sporting", true, SportingGoods},
	{"electron", false, Electronics},
	{"pet", false, Pets},
	{"child", false, Children},
	{"kid", false, Children},
	{"mortgage", false, MortgageAndRent},
	{"rent", false, MortgageAndRent},
	{"car", false, Car},
	{"auto", false, Car},
	{"home", false, HomeAndGarden},
	{"garden", false, HomeAndGarden},
	{"medical", false, Medical},
	{"entertainment", false, Entertainment},
	{"bill", false, BillsAndUtilities},
	{"utility", false, BillsAndUtilities},
	{"invest", false, Investments},
	{"fees", false, Fees},
	{"taxes", false, Taxes},
	{"business", false, BusinessServices},
	{"cash", false, CashAndChecks},
	{"check", false, CashAndChecks},
	{"gift", false, Gifts},
	{"education", false, Education},
}

// Classify maps a raw aggregator or import hint to a category. The second
// return is false on a fallthrough, meaning the hint matched nothing and
// the taxonomy may have a gap worth extending; callers should surface
// those rather than swallow them.
func Classify(raw string) (Category, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Uncategorized, false
	}
	for _, r := range classifyRules {
		if r.exact {
			if s == r.term {
				return r.cat, true
			}
		} else if strings.Contains(s, r.term) {
			return r.cat, true
		}
	}
	return Uncategorized, false
}

// dominance lists pairwise reductions for hint sets that carry several
// related categories at once (the aggregator reports hierarchical paths
// like ["Travel", "Airlines"]). When both members are present, loser is
// dropped. Applied strictly in this order so the result never depends on
// input ordering.
var dominance = []struct {
	winner, loser Category
}{
	{Airlines, Travel},
	{Deposit, Transfer},
	{Debit, Transfer},
	{Transfer, Payroll},
	{Restaurants, FoodAndDrink},
	{CoffeeShop, Restaurants},
	{FastFood, FoodAndDrink},
	{FastFood, Restaurants},
	{GymsAndFitness, Recreation},
	{CreditCard, FoodAndDrink},
	{CreditCard, Payment},
	{Transfer, FoodAndDrink},
	{FoodAndDrink, Shops},
	{Travel, FoodAndDrink},
	{Taxi, Travel},
}

// specificity ranks the categories that survive reduction; lower ranks
// are more specific and win a tie. Categories absent from this list rank
// behind everything in it, ordered by id.
var specificity = []Category{
	CoffeeShop, FastFood, Taxi, Airlines, GymsAndFitness, Restaurants,
	SportingGoods, Electronics, Pets, Children, MortgageAndRent, Medical,
	Entertainment, BillsAndUtilities, Education, Gifts, Taxes, Fees,
	HomeAndGarden, Car, FoodAndDrink, Shops, Recreation, Travel,
	BusinessServices, Investments, Payroll, Deposit, Debit, CreditCard,
	Payment, CashAndChecks, Transfer,
}

func specificityRank(c Category) int {
	for i, s := range specificity {
		if s == c {
			return i
		}
	}
	return len(specificity) + int(c)
}

// Disambiguate reduces a set of candidate categories to a single one.
// Deterministic for any finite input regardless of order: duplicates are
// removed, Uncategorized is dropped when anything else is present, the
// dominance pairs are applied in their fixed order, and any remaining tie
// is broken by specificity rank.
func Disambiguate(cats []Category) Category {
	if len(cats) == 0 {
		return Uncategorized
	}

	present := make(map[Category]bool, len(cats))
	for _, c := range cats {
		present[c] = true
	}
	if len(present) > 1 {
		delete(present, Uncategorized)
	}

	for _, d := range dominance {
		if len(present) == 1 {
			break
		}
		if present[d.winner] && present[d.loser] {
			delete(present, d.loser)
		}
	}

	remaining := make([]Category, 0, len(present))
	for c := range present {
		remaining = append(remaining, c)
	}
	sort.Slice(remaining, func(i, j int) bool {
		return specificityRank(remaining[i]) < specificityRank(remaining[j])
	})
	return remaining[0]
}
