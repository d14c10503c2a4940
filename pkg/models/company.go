package models

type Company struct {
	Name            string `json:"name"`
	DateFounded     string `json:"date_founded,omitempty"`
	LatestRoundType string `json:"latest_round_type,omitempty"`
	LatestRoundDate string `json:"latest_round_date,omitempty"`
	DateAcquisition string `json:"date_acquisition,omitempty"`
	IPODate         string `json:"ipo_date,omitempty"`
	PEDate          string `json:"pe_date,omitempty"`
	EcosystemName   string `json:"ecosystem_name,omitempty"`
}
