package models

// Funding-stage labels carried in the roundType columns.
const (
	RoundPreSeed     = "Pre-Seed"
	RoundSeed        = "Seed"
	RoundSeriesA     = "Series A"
	RoundSeriesB     = "Series B"
	RoundSeriesC     = "Series C"
	RoundSeriesD     = "Series D"
	RoundSeriesDPlus = "Series D+"
	RoundCrowdfund   = "Equity Crowdfunding"
	RoundGrant       = "Grant"
	RoundUnknown     = "Unknown"

	// RoundPlaceholder marks a deal whose stage was never recorded upstream.
	RoundPlaceholder = "Series ?"
)

// Deal is one funding round as read from deals.csv.
//
// Date is kept as text (YYYY-MM-DD or empty); Amount is nil when the
// source cell is empty or unparsable.
type Deal struct {
	ID            string   `json:"id"`
	CompanyName   string   `json:"company_name"`
	Date          string   `json:"date,omitempty"`
	Year          int      `json:"year,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	RoundType     string   `json:"round_type,omitempty"`
	Investors     []string `json:"investors,omitempty"`
	LeadInvestors []string `json:"lead_investors,omitempty"`
	PrimaryTag    string   `json:"primary_tag,omitempty"`
	Headquarters  string   `json:"headquarters,omitempty"`
	EcosystemName string   `json:"ecosystem_name,omitempty"`
}
