package domain

import (
	"strings"
	"time"
)

// Source names stored in accidents.source.
const (
	SourceARIA   = "ARIA"
	SourceEPICEA = "EPICEA"
)

// RawRecord is one source row keyed by its original column label.
type RawRecord map[string]string

// Get returns the trimmed value of a column, empty when absent.
func (r RawRecord) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Site describes the facility where an accident happened.
type Site struct {
	SiteID             string
	PlantName          string
	Address            string
	Latitude           *float64
	Longitude          *float64
	Country            string
	IndustrialActivity string
}

// SiteKey is the identity used to deduplicate facilities across reports.
type SiteKey struct {
	PlantName string
	Address   string
}

// Key returns the (plant name, address) identity of the site.
func (s Site) Key() SiteKey {
	return SiteKey{PlantName: s.PlantName, Address: s.Address}
}

// Accident is the core incident metadata.
type Accident struct {
	AccidentID    string
	SiteID        string
	Title         string
	Source        string
	SourceID      string
	AccidentDate  *time.Time
	SeverityScale string
}

// Causes holds causation and equipment failure data.
type Causes struct {
	AccidentID    string
	EventCategory string
	Failure       string
	Description   string
}

// Substance is one chemical substance involved in an accident.
type Substance struct {
	AccidentID string
	Name       string
	CASNumber  string
	Quantity   string
	CLPClass   string
}

// HumanConsequences carries casualty counts; unknown counts are zero.
type HumanConsequences struct {
	AccidentID   string
	Fatalities   int
	Injuries     int
	Evacuated    int
	Hospitalized int
}

// OtherConsequences carries environmental and economic impact.
type OtherConsequences struct {
	AccidentID          string
	EnvironmentalImpact string
	EconomicCost        string
	DisruptionDuration  string
}

// AccidentRecord is the six-part bundle produced once per source row.
// Substances is never nil.
type AccidentRecord struct {
	Site              Site
	Accident          Accident
	Causes            Causes
	Substances        []Substance
	HumanConsequences HumanConsequences
	OtherConsequences OtherConsequences
}
