package models

import "time"

// ProviderType identifies the regional branch of the provider serving an account.
type ProviderType int

// AccountAPI describes the regional API endpoint an account belongs to.
type AccountAPI struct {
	Region      string `json:"region"`
	LKRegionURL string `json:"lk_region_url"`
}

// Account represents a customer account as returned by the provider API
type Account struct {
	Code         string       `json:"code"`
	ProviderType ProviderType `json:"provider_type"`
	Address      string       `json:"address"`
	API          AccountAPI   `json:"api"`
}

// AccountInfo holds the billing state of an account
type AccountInfo struct {
	Code           string    `json:"code"`
	Balance        float64   `json:"balance"`
	Tariff         string    `json:"tariff"`
	SubmissionOpen bool      `json:"submission_open"`
	SubmissionFrom int       `json:"submission_from"`
	SubmissionTo   int       `json:"submission_to"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MeterReading represents a single meter reading for one tariff zone
type MeterReading struct {
	Time  time.Time `json:"time"`
	Zone  string    `json:"zone"`
	Value float64   `json:"value"`
}

// Meter represents an installed meter with its latest readings
type Meter struct {
	Code        string         `json:"code"`
	Model       string         `json:"model"`
	Zones       int            `json:"zones"`
	LastReading *MeterReading  `json:"last_reading"`
	Readings    []MeterReading `json:"readings"`
}

// Invoice represents a billing period invoice
type Invoice struct {
	ID      string    `json:"id"`
	Period  time.Time `json:"period"`
	Total   float64   `json:"total"`
	Paid    float64   `json:"paid"`
	DueDate time.Time `json:"due_date"`
}

// EntityState is one published state of an entity, as recorded in state history
type EntityState struct {
	Time        time.Time              `json:"time"`
	UniqueID    string                 `json:"unique_id"`
	EntityID    string                 `json:"entity_id"`
	Platform    string                 `json:"platform"`
	AccountCode string                 `json:"account_code"`
	State       string                 `json:"state"`
	Value       *float64               `json:"value,omitempty"`
	Available   bool                   `json:"available"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// StateAggregate is a time-bucketed aggregate over numeric entity states
type StateAggregate struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}
