// Package store keeps a SQLite snapshot of the pipeline outputs for the API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dealflow/internal/dataset"
	"dealflow/pkg/models"
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Counts is how many rows an import wrote per table.
type Counts struct {
	Deals         int `json:"deals"`
	Companies     int `json:"companies"`
	Investors     int `json:"investors"`
	DealInvestors int `json:"deal_investors"`
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Import upserts the whole dataset in a single transaction.
func (s *Store) Import(ctx context.Context, ds *dataset.Dataset) (Counts, error) {
	var c Counts
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c.Deals, err = upsertDeals(ctx, tx, ds.Deals); err != nil {
		return c, err
	}
	if c.Companies, err = upsertCompanies(ctx, tx, ds.Companies); err != nil {
		return c, err
	}
	if c.Investors, err = upsertInvestors(ctx, tx, ds.Investors); err != nil {
		return c, err
	}
	if c.DealInvestors, err = upsertDealInvestors(ctx, tx, ds.DealInvestors); err != nil {
		return c, err
	}

	if err := tx.Commit(); err != nil {
		return c, fmt.Errorf("commit tx: %w", err)
	}
	return c, nil
}

func upsertDeals(ctx context.Context, tx *sql.Tx, deals []models.Deal) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deals (id, company_name, date, year, amount, round_type, investors, lead_investors, primary_tag, headquarters, ecosystem_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  company_name = excluded.company_name,
		  date = excluded.date,
		  year = excluded.year,
		  amount = excluded.amount,
		  round_type = excluded.round_type,
		  investors = excluded.investors,
		  lead_investors = excluded.lead_investors,
		  primary_tag = excluded.primary_tag,
		  headquarters = excluded.headquarters,
		  ecosystem_name = excluded.ecosystem_name
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare deals: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, d := range deals {
		if d.ID == "" {
			continue
		}
		inv, err := marshalList(d.Investors)
		if err != nil {
			return n, fmt.Errorf("marshal investors for %s: %w", d.ID, err)
		}
		lead, err := marshalList(d.LeadInvestors)
		if err != nil {
			return n, fmt.Errorf("marshal lead investors for %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			d.ID,
			d.CompanyName,
			nullString(d.Date),
			nullInt(d.Year),
			nullFloat(d.Amount),
			nullString(d.RoundType),
			inv,
			lead,
			nullString(d.PrimaryTag),
			nullString(d.Headquarters),
			nullString(d.EcosystemName),
		); err != nil {
			return n, fmt.Errorf("exec upsert deal %s: %w", d.ID, err)
		}
		n++
	}
	return n, nil
}

func upsertCompanies(ctx context.Context, tx *sql.Tx, companies []models.Company) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO companies (name, date_founded, latest_round_type, latest_round_date, date_acquisition, ipo_date, pe_date, ecosystem_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		  date_founded = excluded.date_founded,
		  latest_round_type = excluded.latest_round_type,
		  latest_round_date = excluded.latest_round_date,
		  date_acquisition = excluded.date_acquisition,
		  ipo_date = excluded.ipo_date,
		  pe_date = excluded.pe_date,
		  ecosystem_name = excluded.ecosystem_name
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare companies: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, c := range companies {
		if c.Name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			c.Name,
			nullString(c.DateFounded),
			nullString(c.LatestRoundType),
			nullString(c.LatestRoundDate),
			nullString(c.DateAcquisition),
			nullString(c.IPODate),
			nullString(c.PEDate),
			nullString(c.EcosystemName),
		); err != nil {
			return n, fmt.Errorf("exec upsert company %s: %w", c.Name, err)
		}
		n++
	}
	return n, nil
}

func upsertInvestors(ctx context.Context, tx *sql.Tx, investors []models.Investor) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO investors (name, country, stages, sectors)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		  country = excluded.country,
		  stages = excluded.stages,
		  sectors = excluded.sectors
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare investors: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, inv := range investors {
		if inv.Name == "" {
			continue
		}
		stages, err := marshalList(inv.Stages)
		if err != nil {
			return n, fmt.Errorf("marshal stages for %s: %w", inv.Name, err)
		}
		sectors, err := marshalList(inv.Sectors)
		if err != nil {
			return n, fmt.Errorf("marshal sectors for %s: %w", inv.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, inv.Name, nullString(inv.Country), stages, sectors); err != nil {
			return n, fmt.Errorf("exec upsert investor %s: %w", inv.Name, err)
		}
		n++
	}
	return n, nil
}

func upsertDealInvestors(ctx context.Context, tx *sql.Tx, dis []models.DealInvestor) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deal_investors (deal_id, investor_name, investor_id, investor_country, year, round_type, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id, investor_name) DO UPDATE SET
		  investor_id = excluded.investor_id,
		  investor_country = excluded.investor_country,
		  year = excluded.year,
		  round_type = excluded.round_type,
		  date = excluded.date
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare deal investors: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, di := range dis {
		if di.DealID == "" || di.InvestorName == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			di.DealID,
			di.InvestorName,
			nullString(di.InvestorID),
			nullString(di.InvestorCountry),
			nullInt(di.Year),
			nullString(di.RoundType),
			nullString(di.Date),
		); err != nil {
			return n, fmt.Errorf("exec upsert deal investor %s/%s: %w", di.DealID, di.InvestorName, err)
		}
		n++
	}
	return n, nil
}

// ImportFiles loads the CSV snapshots named in files and imports them.
func (s *Store) ImportFiles(ctx context.Context, files dataset.Files) (Counts, error) {
	ds, err := dataset.Load(files)
	if err != nil {
		return Counts{}, err
	}
	return s.Import(ctx, ds)
}
