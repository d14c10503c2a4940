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
	files := dataset.FilesFromConfig(cfg.Data)

	var (
		dealsIn     = flag.String("deals", files.Deals, "input CSV path for deals")
		companiesIn = flag.String("companies", files.Companies, "input CSV path for companies")
		investorsIn = flag.String("investors", files.Investors, "input CSV path for investors")
		diIn        = flag.String("deal-investors", files.DealInvestors, "input CSV path for deal investors")
		dbPath      = flag.String("db", cfg.Database.Path, "SQLite database path")
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

	counts, err := store.New(db).ImportFiles(ctx, dataset.Files{
		Deals:         *dealsIn,
		Companies:     *companiesIn,
		Investors:     *investorsIn,
		DealInvestors: *diIn,
	})
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	logger.Info("imported pipeline outputs",
		"db", *dbPath,
		"deals", counts.Deals,
		"companies", counts.Companies,
		"investors", counts.Investors,
		"deal_investors", counts.DealInvestors,
	)
}
