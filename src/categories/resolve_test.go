package categories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDescription(t *testing.T) {
	assert.Equal(t, "starbucks", NormalizeDescription("Starbucks "))
	assert.Equal(t, "starbucks", NormalizeDescription("starbucks"))
	assert.Equal(t, "mcdonalds#4521", NormalizeDescription("MCDONALDS #4521"))
	assert.Equal(t, "attbill", NormalizeDescription("AT&T Bill"))
	assert.Equal(t, "joescrabshack", NormalizeDescription("Joe's Crab Shack"))
}

func TestApplyOverrides_LastMatchWins(t *testing.T) {
	// "Uber Eats" normalizes to "ubereats...": both the "uber" entry and
	// the later "ubereats" entry match, and the later one must win.
	cat, ok := ApplyOverrides("UBER EATS ORDER 123")
	assert.True(t, ok)
	assert.Equal(t, Restaurants, cat)

	cat, ok = ApplyOverrides("UBER TRIP 456")
	assert.True(t, ok)
	assert.Equal(t, Taxi, cat)

	cat, ok = ApplyOverrides("AMAZON PRIME MEMBERSHIP")
	assert.True(t, ok)
	assert.Equal(t, BillsAndUtilities, cat)
}

func TestApplyOverrides_McDonalds(t *testing.T) {
	cat, ok := ApplyOverrides("MCDONALDS #4521")
	assert.True(t, ok)
	assert.Equal(t, FastFood, cat)
}

func TestApplyOverrides_NoMatch(t *testing.T) {
	_, ok := ApplyOverrides("Totally Unknown Vendor LLC")
	assert.False(t, ok)
}

func TestResolve_UserRuleBeatsEverything(t *testing.T) {
	rules := NewRuleSet()
	rules.Add("MCDONALDS #4521", BusinessServices)

	// A rule outranks both the mcdonalds keyword override and the
	// restaurant hint.
	cat, gaps := Resolve([]string{"Restaurants"}, "MCDONALDS #4521", rules)
	assert.Equal(t, BusinessServices, cat)
	assert.Empty(t, gaps)

	// Rule matching is exact on the normalized description, so a
	// different store number does not match and falls to the override.
	cat, _ = Resolve([]string{"Restaurants"}, "MCDONALDS #9999", rules)
	assert.Equal(t, FastFood, cat)
}

func TestResolve_OverrideBeatsHints(t *testing.T) {
	cat, gaps := Resolve([]string{"Restaurants"}, "MCDONALDS #4521", nil)
	assert.Equal(t, FastFood, cat)
	assert.Empty(t, gaps)
}

func TestResolve_FallsBackToClassifier(t *testing.T) {
	cat, gaps := Resolve([]string{"Travel", "Airlines and Aviation Services"}, "AIR TICKET 0123456789", nil)
	assert.Equal(t, Airlines, cat)
	assert.Empty(t, gaps)
}

func TestResolve_EmptyHints(t *testing.T) {
	cat, gaps := Resolve(nil, "SOME UNKNOWN VENDOR", nil)
	assert.Equal(t, Uncategorized, cat)
	assert.Empty(t, gaps)
}

func TestResolve_ReportsGaps(t *testing.T) {
	cat, gaps := Resolve([]string{"Underwater Basket Weaving"}, "SOME VENDOR", nil)
	assert.Equal(t, Uncategorized, cat)
	assert.Equal(t, []string{"Underwater Basket Weaving"}, gaps)
}

func TestRuleSet_NormalizedCollision(t *testing.T) {
	rules := NewRuleSet()
	rules.Add("Starbucks ", CoffeeShop)

	cat, ok := rules.Lookup("starbucks")
	assert.True(t, ok)
	assert.Equal(t, CoffeeShop, cat)
}
