package models

// Column names as they appear in the CSV headers.
const (
	ColID            = "id"
	ColDealID        = "dealId"
	ColCompanyName   = "companyName"
	ColDate          = "date"
	ColYear          = "year"
	ColAmount        = "amount"
	ColRoundType     = "roundType"
	ColInvestors     = "investors"
	ColLeadInvestors = "leadInvestors"
	ColPrimaryTag    = "primaryTag"
	ColHeadquarters  = "headquarters"
	ColEcosystemName = "ecosystemName"

	ColDateFounded           = "dateFounded"
	ColLatestRoundType       = "latestRoundType"
	ColLatestRoundDate       = "latestRoundDate"
	ColDateAcquisition       = "dateAcquisition"
	ColDateAcquisitionLegacy = "dateAcqusition"
	ColIPODate               = "ipoDate"
	ColPEDate                = "peDate"

	ColInvestorID      = "investorId"
	ColInvestorName    = "investorName"
	ColInvestorCountry = "investorCountry"
	ColCountry         = "country"
	ColStages          = "stages"
	ColSectors         = "sectors"
)

// DateColumns are the company columns the sanitizer checks by default.
var DateColumns = []string{
	ColDateFounded,
	ColLatestRoundDate,
	ColDateAcquisition,
	ColDateAcquisitionLegacy,
	ColIPODate,
	ColPEDate,
}
