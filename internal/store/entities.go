package store

import (
	"context"
	"database/sql"
	"fmt"

	"dealflow/internal/dataset"
	"dealflow/internal/normalize"
	"dealflow/pkg/models"
)

const companyColumns = `name, date_founded, latest_round_type, latest_round_date, date_acquisition, ipo_date, pe_date, ecosystem_name`

func scanCompany(sc rowScanner) (models.Company, error) {
	var (
		c                                   models.Company
		founded, latestType, latestDate     sql.NullString
		acquisition, ipo, pe, ecosystemName sql.NullString
	)
	if err := sc.Scan(&c.Name, &founded, &latestType, &latestDate, &acquisition, &ipo, &pe, &ecosystemName); err != nil {
		return c, err
	}
	c.DateFounded = founded.String
	c.LatestRoundType = latestType.String
	c.LatestRoundDate = latestDate.String
	c.DateAcquisition = acquisition.String
	c.IPODate = ipo.String
	c.PEDate = pe.String
	c.EcosystemName = ecosystemName.String
	return c, nil
}

// GetCompany looks a company up by normalized name. It returns nil when
// nothing matches.
func (s *Store) GetCompany(ctx context.Context, name string) (*models.Company, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = ?`,
		normalize.Key(name),
	)
	c, err := scanCompany(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getCompany: %w", err)
	}
	return &c, nil
}

func (s *Store) AllCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("companies query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("companies scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AllInvestors(ctx context.Context) ([]models.Investor, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, country, stages, sectors FROM investors ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("investors query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Investor, 0)
	for rows.Next() {
		var (
			inv             models.Investor
			country         sql.NullString
			stages, sectors sql.NullString
		)
		if err := rows.Scan(&inv.Name, &country, &stages, &sectors); err != nil {
			return nil, fmt.Errorf("investors scan: %w", err)
		}
		inv.Country = country.String
		inv.Stages = unmarshalList(stages)
		inv.Sectors = unmarshalList(sectors)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) AllDealInvestors(ctx context.Context) ([]models.DealInvestor, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT deal_id, investor_name, investor_id, investor_country, year, round_type, date
		FROM deal_investors
		ORDER BY deal_id ASC, investor_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("deal investors query: %w", err)
	}
	defer rows.Close()

	out := make([]models.DealInvestor, 0)
	for rows.Next() {
		var (
			di                  models.DealInvestor
			investorID, country sql.NullString
			year                sql.NullInt64
			roundType, date     sql.NullString
		)
		if err := rows.Scan(&di.DealID, &di.InvestorName, &investorID, &country, &year, &roundType, &date); err != nil {
			return nil, fmt.Errorf("deal investors scan: %w", err)
		}
		di.InvestorID = investorID.String
		di.InvestorCountry = country.String
		if year.Valid {
			di.Year = int(year.Int64)
		}
		di.RoundType = roundType.String
		di.Date = date.String
		out = append(out, di)
	}
	return out, rows.Err()
}

// Snapshot reads every table back into a dataset.
func (s *Store) Snapshot(ctx context.Context) (*dataset.Dataset, error) {
	var (
		ds  dataset.Dataset
		err error
	)
	if ds.Deals, err = s.AllDeals(ctx); err != nil {
		return nil, err
	}
	if ds.Companies, err = s.AllCompanies(ctx); err != nil {
		return nil, err
	}
	if ds.Investors, err = s.AllInvestors(ctx); err != nil {
		return nil, err
	}
	if ds.DealInvestors, err = s.AllDealInvestors(ctx); err != nil {
		return nil, err
	}
	return &ds, nil
}
