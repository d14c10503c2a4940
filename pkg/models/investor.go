package models

// Investor is one row of the investors table. Stages and Sectors are
// stored serialized (", "-joined, sorted) and split here for callers.
type Investor struct {
	Name    string   `json:"name"`
	Country string   `json:"country,omitempty"`
	Stages  []string `json:"stages,omitempty"`
	Sectors []string `json:"sectors,omitempty"`
}

// DealInvestor links an investor to a deal.
type DealInvestor struct {
	DealID          string `json:"deal_id"`
	InvestorID      string `json:"investor_id,omitempty"`
	InvestorName    string `json:"investor_name"`
	InvestorCountry string `json:"investor_country,omitempty"`
	Year            int    `json:"year,omitempty"`
	RoundType       string `json:"round_type,omitempty"`
	Date            string `json:"date,omitempty"`
}
