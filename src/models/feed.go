package models

import "time"

// Aggregator-neutral feed shapes. The plaid package converts wire types
// into these so the reconciliation engine can be exercised without a
// network.

// TransactionRecord is one added or modified row from the delta feed.
// Amount keeps the aggregator's sign convention (outflow positive); the
// engine negates it on ingestion.
type TransactionRecord struct {
	ExternalID        string
	PendingExternalID string
	AccountExternalID string
	Amount            float64
	Hints             []string
	MerchantName      string
	Description       string
	Date              time.Time
	Datetime          *time.Time
	Currency          string
	Pending           bool
	LogoURL           string
}

// RemovedRecord identifies a transaction deleted upstream.
type RemovedRecord struct {
	ExternalID        string
	AccountExternalID string
}

// DeltaPage is one page of the cursor-based sync feed.
type DeltaPage struct {
	Added      []TransactionRecord
	Modified   []TransactionRecord
	Removed    []RemovedRecord
	NextCursor string
	HasMore    bool
}

// BalanceRecord is one sub-account balance snapshot.
type BalanceRecord struct {
	ExternalID   string
	Name         string
	OfficialName string
	Type         string
	SubType      string
	Currency     string
	Available    *float64
	Current      *float64
	Limit        *float64
}

// RecurringStream is one recurring inflow or outflow stream.
type RecurringStream struct {
	AccountExternalID string
	AverageAmount     float64
	LastAmount        float64
	FirstDate         time.Time
	LastDate          time.Time
	Description       string
	MerchantName      string
	IsActive          bool
	Status            string
	Hints             []string
}

// SyncResult reports one sync run. NewData is true when any added,
// modified, or removed record was applied.
type SyncResult struct {
	Success bool `json:"success"`
	NewData bool `json:"new_data"`

	Added      int `json:"added"`
	Modified   int `json:"modified"`
	Removed    int `json:"removed"`
	Duplicates int `json:"duplicates"`
	Anomalies  int `json:"anomalies"`
}
