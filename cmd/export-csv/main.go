package main

import (
	"context"
	"flag"
	"log"
	"time"

	"dealflow/internal/dataset"
	"dealflow/internal/logging"
	"dealflow/internal/store"
	"dealflow/pkg/database"
	"dealflow/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig(utils.ConfigPath())
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	var (
		dealsOut     = flag.String("deals", "export/deals.csv", "output CSV path for deals")
		companiesOut = flag.String("companies", "export/companies.csv", "output CSV path for companies")
		investorsOut = flag.String("investors", "export/investors.csv", "output CSV path for investors")
		diOut        = flag.String("deal-investors", "export/deal_investors.csv", "output CSV path for deal investors")
		dbPath       = flag.String("db", cfg.Database.Path, "SQLite database path")
	)
	flag.Parse()

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		log.Fatalf("init logging failed: %v", err)
	}
	defer logging.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbOpts := cfg.Database.Options()
	dbOpts.Path = *dbPath
	db := database.MustOpen(dbOpts)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	snap, err := store.New(db).Snapshot(ctx)
	if err != nil {
		log.Fatalf("snapshot failed: %v", err)
	}
	files := dataset.Files{
		Deals:         *dealsOut,
		Companies:     *companiesOut,
		Investors:     *investorsOut,
		DealInvestors: *diOut,
	}
	if err := snap.Save(files); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	logger.Info("exported database snapshot",
		"db", *dbPath,
		"deals", len(snap.Deals),
		"companies", len(snap.Companies),
		"investors", len(snap.Investors),
		"deal_investors", len(snap.DealInvestors),
	)
}
