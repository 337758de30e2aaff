package categories

import (
	"fmt"
	"strings"
)

// Category identifies one spending category. Values are persisted as
// integers, so they are never renumbered or reused; gaps (e.g. 2) are
// retired values.
type Category int

const (
	Uncategorized     Category = -1
	FoodAndDrink      Category = 0
	Restaurants       Category = 1
	Travel            Category = 3
	Airlines          Category = 4
	Recreation        Category = 5
	GymsAndFitness    Category = 6
	Transfer          Category = 7
	Deposit           Category = 8
	Payroll           Category = 9
	CreditCard        Category = 10
	FastFood          Category = 11
	Debit             Category = 12
	Shops             Category = 13
	Payment           Category = 14
	CoffeeShop        Category = 15
	Taxi              Category = 16
	SportingGoods     Category = 17
	Electronics       Category = 18
	Pets              Category = 19
	Children          Category = 20
	MortgageAndRent   Category = 21
	Car               Category = 22
	HomeAndGarden     Category = 23
	Medical           Category = 24
	Entertainment     Category = 25
	BillsAndUtilities Category = 26
	Investments       Category = 27
	Fees              Category = 28
	Taxes             Category = 29
	BusinessServices  Category = 30
	CashAndChecks     Category = 31
	Gifts             Category = 32
	Education         Category = 33
)

// CustomStart is the first id reserved for user-defined categories. The
// classifier never assigns values at or above it.
const CustomStart Category = 1000

// Class groups categories for spending math. NotApplicable categories
// (transfers, income, fees on money movement) are excluded from spending
// totals entirely.
type Class int

const (
	ClassDiscretionary Class = iota
	ClassNonDiscretionary
	ClassNotApplicable
)

// All returns every built-in category, including Uncategorized.
func All() []Category {
	return []Category{
		Uncategorized, FoodAndDrink, Restaurants, Travel, Airlines,
		Recreation, GymsAndFitness, Transfer, Deposit, Payroll, CreditCard,
		FastFood, Debit, Shops, Payment, CoffeeShop, Taxi, SportingGoods,
		Electronics, Pets, Children, MortgageAndRent, Car, HomeAndGarden,
		Medical, Entertainment, BillsAndUtilities, Investments, Fees, Taxes,
		BusinessServices, CashAndChecks, Gifts, Education,
	}
}

var displayNames = map[Category]string{
	Uncategorized:     "Uncategorized",
	FoodAndDrink:      "Food and drink",
	Restaurants:       "Restaurants",
	Travel:            "Travel",
	Airlines:          "Airlines",
	Recreation:        "Recreation",
	GymsAndFitness:    "Gyms",
	Transfer:          "Transfer",
	Deposit:           "Deposit",
	Payroll:           "Payroll",
	CreditCard:        "Credit card",
	FastFood:          "Fast food",
	Debit:             "Debit",
	Shops:             "Shops",
	Payment:           "Payment",
	CoffeeShop:        "Coffee shop",
	Taxi:              "Taxi",
	SportingGoods:     "Sporting goods",
	Electronics:       "Electronics",
	Pets:              "Pets",
	Children:          "Children",
	MortgageAndRent:   "Mortgage and rent",
	Car:               "Car",
	HomeAndGarden:     "Home and garden",
	Medical:           "Medical",
	Entertainment:     "Entertainment",
	BillsAndUtilities: "Bills and utilities",
	Investments:       "Investments",
	Fees:              "Fees",
	Taxes:             "Taxes",
	BusinessServices:  "Business services",
	CashAndChecks:     "Cash and checks",
	Gifts:             "Gifts",
	Education:         "Education",
}

var icons = map[Category]string{
	Uncategorized:     "",
	FoodAndDrink:      "🍎",
	Restaurants:       "🍴",
	Travel:            "✈️",
	Airlines:          "✈️",
	Recreation:        "⛵",
	GymsAndFitness:    "🏋️",
	Transfer:          "💵 ➡️",
	Deposit:           "💵 ⬆️",
	Payroll:           "💵 ⬆️",
	CreditCard:        "💵 ⬇️",
	FastFood:          "🍔",
	Debit:             "💵 ⬇️",
	Shops:             "🛒",
	Payment:           "💵",
	CoffeeShop:        "☕",
	Taxi:              "🚕",
	SportingGoods:     "⚽",
	Electronics:       "🔌",
	Pets:              "🐕",
	Children:          "🧒",
	MortgageAndRent:   "🏠",
	Car:               "🚗",
	HomeAndGarden:     "🏡",
	Medical:           "☤",
	Entertainment:     "🎥",
	BillsAndUtilities: "⚡",
	Investments:       "📈",
	Fees:              "💸",
	Taxes:             "🏛️",
	BusinessServices:  "📈",
	CashAndChecks:     "💵",
	Gifts:             "🎁",
	Education:         "🎓",
}

var classes = map[Category]Class{
	Uncategorized:     ClassNotApplicable,
	FoodAndDrink:      ClassNonDiscretionary,
	Restaurants:       ClassDiscretionary,
	Travel:            ClassDiscretionary,
	Airlines:          ClassDiscretionary,
	Recreation:        ClassDiscretionary,
	GymsAndFitness:    ClassDiscretionary,
	Transfer:          ClassNotApplicable,
	Deposit:           ClassNotApplicable,
	Payroll:           ClassNotApplicable,
	CreditCard:        ClassNotApplicable,
	FastFood:          ClassDiscretionary,
	Debit:             ClassNotApplicable,
	Shops:             ClassDiscretionary,
	Payment:           ClassNotApplicable,
	CoffeeShop:        ClassDiscretionary,
	Taxi:              ClassDiscretionary,
	SportingGoods:     ClassDiscretionary,
	Electronics:       ClassDiscretionary,
	Pets:              ClassDiscretionary,
	Children:          ClassNonDiscretionary,
	MortgageAndRent:   ClassNonDiscretionary,
	Car:               ClassNonDiscretionary,
	HomeAndGarden:     ClassDiscretionary,
	Medical:           ClassNonDiscretionary,
	Entertainment:     ClassDiscretionary,
	BillsAndUtilities: ClassNonDiscretionary,
	Investments:       ClassNotApplicable,
	Fees:              ClassNonDiscretionary,
	Taxes:             ClassNonDiscretionary,
	BusinessServices:  ClassNonDiscretionary,
	CashAndChecks:     ClassNotApplicable,
	Gifts:             ClassDiscretionary,
	Education:         ClassNonDiscretionary,
}

// IsCustom reports whether c is a user-defined category. Display names for
// custom categories live in the database, not here.
func (c Category) IsCustom() bool { return c >= CustomStart }

func (c Category) DisplayName() string {
	if c.IsCustom() {
		return "Custom"
	}
	return displayNames[c]
}

// FromDisplayName resolves a built-in category by its display name,
// case-insensitively. Used when reading data that carries our own labels
// back in, e.g. a re-imported CSV export.
func FromDisplayName(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Uncategorized, false
	}
	for c, dn := range displayNames {
		if strings.EqualFold(dn, name) {
			return c, true
		}
	}
	return Uncategorized, false
}

func (c Category) Icon() string {
	if c.IsCustom() {
		return ""
	}
	return icons[c]
}

func (c Category) DiscretionaryClass() Class {
	if c.IsCustom() {
		return ClassDiscretionary
	}
	return classes[c]
}

// IsSpending reports whether transactions in this category count toward
// spending totals.
func (c Category) IsSpending() bool {
	return c.DiscretionaryClass() != ClassNotApplicable
}

// Valid reports whether c is a known built-in or custom category id.
func (c Category) Valid() bool {
	if c.IsCustom() {
		return true
	}
	_, ok := displayNames[c]
	return ok
}

// Validate checks that every built-in category has a display name, icon,
// and discretionary class. A missing entry is a programming error; call
// this at startup rather than letting a zero value leak out at runtime.
func Validate() error {
	for _, c := range All() {
		if _, ok := displayNames[c]; !ok {
			return fmt.Errorf("category %d has no display name", c)
		}
		if _, ok := icons[c]; !ok {
			return fmt.Errorf("category %d has no icon", c)
		}
		if _, ok := classes[c]; !ok {
			return fmt.Errorf("category %d has no discretionary class", c)
		}
	}
	return nil
}
