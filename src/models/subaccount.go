package models

import (
	"strings"
	"time"
)

// AccountType is the coarse account class. Persisted as an integer.
type AccountType int

const (
	TypeDepository AccountType = 0
	TypeCredit     AccountType = 1
	TypeLoan       AccountType = 2
	TypeInvestment AccountType = 3
	TypeBrokerage  AccountType = 4
	TypeCrypto     AccountType = 5
	TypeOther      AccountType = 6
)

// AccountTypeFromStr maps an aggregator type string. Unknown strings map
// to TypeOther rather than failing; the feed vocabulary grows over time.
func AccountTypeFromStr(s string) AccountType {
	switch strings.ToLower(s) {
	case "depository":
		return TypeDepository
	case "credit":
		return TypeCredit
	case "loan":
		return TypeLoan
	case "investment":
		return TypeInvestment
	case "brokerage":
		return TypeBrokerage
	case "crypto":
		return TypeCrypto
	default:
		return TypeOther
	}
}

// IsLiability reports whether balances of this type subtract from net
// worth.
func (t AccountType) IsLiability() bool {
	return t == TypeCredit || t == TypeLoan
}

// SubAccountType is the finer account class. Persisted as an integer.
type SubAccountType int

const (
	SubTypeChecking    SubAccountType = 0
	SubTypeSavings     SubAccountType = 1
	SubTypeCreditCard  SubAccountType = 2
	SubTypeMoneyMarket SubAccountType = 3
	SubTypeCD          SubAccountType = 4
	SubTypeBrokerage   SubAccountType = 5
	SubTypeIRA         SubAccountType = 6
	SubType401K        SubAccountType = 7
	SubTypeStudent     SubAccountType = 8
	SubTypeMortgage    SubAccountType = 9
	SubTypeCrypto      SubAccountType = 10
	SubTypeOther       SubAccountType = 11
)

func SubAccountTypeFromStr(s string) SubAccountType {
	switch strings.ToLower(s) {
	case "checking":
		return SubTypeChecking
	case "savings":
		return SubTypeSavings
	case "credit card", "credit_card":
		return SubTypeCreditCard
	case "money market", "money_market":
		return SubTypeMoneyMarket
	case "cd":
		return SubTypeCD
	case "brokerage":
		return SubTypeBrokerage
	case "ira":
		return SubTypeIRA
	case "401k":
		return SubType401K
	case "student":
		return SubTypeStudent
	case "mortgage":
		return SubTypeMortgage
	case "crypto":
		return SubTypeCrypto
	default:
		return SubTypeOther
	}
}

// SubAccount is one balance-bearing account, owned by a linked account
// XOR directly by a user (manual entry). ExternalID is the reconciliation
// join key for linked sub-accounts.
type SubAccount struct {
	ID           int64          `json:"id"`
	AccountID    *int64         `json:"account_id"`
	UserID       *int64         `json:"user_id"`
	ExternalID   string         `json:"external_id"`
	Name         string         `json:"name"`
	OfficialName string         `json:"official_name"`
	Type         AccountType    `json:"type"`
	SubType      SubAccountType `json:"sub_type"`
	Currency     string         `json:"currency"`
	Available    *float64       `json:"available"`
	Current      *float64       `json:"current"`
	Limit        *float64       `json:"limit"`
	Ignored      bool           `json:"ignored"`
	CreatedAt    time.Time      `json:"created_at"`
}
