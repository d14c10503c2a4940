// Command dealctl talks to the dealflow API server: operator accounts, deal
// and company lookups, insights, pipeline runs and the run event streams.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"dealflow/internal/store"
	"dealflow/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type authResponse struct {
	Token string `json:"token"`
}

type dealListResponse struct {
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Items  []models.Deal `json:"items"`
}

type runResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

var insightViews = []string{"summary", "quarters", "years", "sectors", "regions", "stages", "countries", "firms"}

// usage marks an error that should print the command synopsis.
type usage string

func (u usage) Error() string { return "usage: " + string(u) }

var errRunFailed = errors.New("run failed")

func main() {
	global := flag.NewFlagSet("dealctl", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	timeout := global.Duration("timeout", 60*time.Second, "HTTP request timeout")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		client:    &http.Client{Timeout: *timeout},
		baseURL:   *baseURL,
		tokenPath: *tokenPath,
		out:       os.Stdout,
	}
	if err := a.dispatch(ctx, args); err != nil {
		var u usage
		if errors.As(err, &u) {
			fmt.Fprintln(os.Stderr, u.Error())
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, sub, rest := args[0], "", []string{}
	if len(args) > 1 {
		sub, rest = args[1], args[2:]
	}

	switch cmd {
	case "auth":
		return a.auth(ctx, sub, rest)
	case "deals":
		return a.deals(ctx, sub, rest)
	case "company":
		return a.company(ctx, sub, rest)
	case "insights":
		return a.insights(ctx, sub, rest)
	case "runs":
		return a.runs(ctx, sub, rest)
	case "events":
		return a.events(ctx, sub, rest)
	default:
		return usage("dealctl <auth|deals|company|insights|runs|events> ...")
	}
}

func (a *app) auth(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "operator email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			return usage("dealctl auth login -email <email> -password <password>")
		}
		return a.signIn(ctx, "/auth/login", map[string]string{"email": *email, "password": *password}, "logged in")

	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "operator name")
		email := fs.String("email", "", "operator email")
		password := fs.String("password", "", "password (8-72 chars)")
		_ = fs.Parse(args)
		if *username == "" || *email == "" || *password == "" {
			return usage("dealctl auth register -username <name> -email <email> -password <password>")
		}
		return a.signIn(ctx, "/auth/register",
			map[string]string{"username": *username, "email": *email, "password": *password},
			"registered and logged in")

	case "change-password":
		fs := flag.NewFlagSet("auth change-password", flag.ExitOnError)
		oldPw := fs.String("old", "", "current password")
		newPw := fs.String("new", "", "new password")
		_ = fs.Parse(args)
		if *oldPw == "" || *newPw == "" {
			return usage("dealctl auth change-password -old <password> -new <password>")
		}
		payload := map[string]string{"old_password": *oldPw, "new_password": *newPw}
		if err := a.call(ctx, http.MethodPost, "/auth/change-password", nil, true, payload, nil); err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		// the server revoked every token, including ours
		if err := clearToken(a.tokenPath); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "password changed, please log in again")
		return nil

	case "logout":
		if err := a.call(ctx, http.MethodPost, "/auth/logout", nil, true, nil, nil); err != nil && !errors.Is(err, errNoToken) {
			log.Printf("server logout failed: %v", err)
		}
		if err := clearToken(a.tokenPath); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "logged out")
		return nil

	default:
		return usage("dealctl auth <login|register|change-password|logout>")
	}
}

func (a *app) signIn(ctx context.Context, path string, payload map[string]string, done string) error {
	var resp authResponse
	if err := a.call(ctx, http.MethodPost, path, nil, false, payload, &resp); err != nil {
		return err
	}
	if err := saveToken(a.tokenPath, resp.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintln(a.out, done)
	return nil
}

func (a *app) deals(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("deals search", flag.ExitOnError)
		query := fs.String("q", "", "company name contains")
		round := fs.String("round", "", "round type, e.g. \"Series A\"")
		sector := fs.String("sector", "", "primary tag")
		from := fs.String("from", "", "earliest deal date (YYYY-MM-DD)")
		to := fs.String("to", "", "latest deal date (YYYY-MM-DD)")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		qv := url.Values{}
		setIf(qv, "q", *query)
		setIf(qv, "round", *round)
		setIf(qv, "sector", *sector)
		setIf(qv, "from", *from)
		setIf(qv, "to", *to)
		setIfPositive(qv, "limit", *limit)
		setIfPositive(qv, "offset", *offset)

		var resp dealListResponse
		if err := a.call(ctx, http.MethodGet, "/api/deals", qv, false, nil, &resp); err != nil {
			return err
		}
		return a.printJSON(resp)

	case "show":
		fs := flag.NewFlagSet("deals show", flag.ExitOnError)
		id := fs.String("id", "", "deal id")
		_ = fs.Parse(args)
		if *id == "" {
			return usage("dealctl deals show -id <deal id>")
		}
		var deal models.Deal
		if err := a.call(ctx, http.MethodGet, "/api/deals/"+url.PathEscape(*id), nil, false, nil, &deal); err != nil {
			return err
		}
		return a.printJSON(deal)

	default:
		return usage("dealctl deals <search|show>")
	}
}

func (a *app) company(ctx context.Context, sub string, args []string) error {
	fs := flag.NewFlagSet("company show", flag.ExitOnError)
	name := fs.String("name", "", "company name (case-insensitive)")
	_ = fs.Parse(args)
	if sub != "show" || *name == "" {
		return usage("dealctl company show -name <company>")
	}

	var resp map[string]any
	if err := a.call(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(*name), nil, false, nil, &resp); err != nil {
		return err
	}
	return a.printJSON(resp)
}

func (a *app) insights(ctx context.Context, view string, args []string) error {
	if view != "export" && !slices.Contains(insightViews, view) {
		return usage("dealctl insights <" + strings.Join(insightViews, "|") + "|export> [-from Y] [-to Y] [-top N]")
	}

	fs := flag.NewFlagSet("insights "+view, flag.ExitOnError)
	from := fs.Int("from", 0, "first year (server default 2019)")
	to := fs.Int("to", 0, "last year (server default 2024)")
	top := fs.Int("top", 0, "rows in ranked views")
	year := fs.Int("year", 0, "single year for the firms view")
	out := fs.String("out", "insights.xlsx", "workbook path for export")
	_ = fs.Parse(args)

	qv := url.Values{}
	setIfPositive(qv, "from", *from)
	setIfPositive(qv, "to", *to)
	setIfPositive(qv, "top", *top)
	setIfPositive(qv, "year", *year)

	if view == "export" {
		if err := a.download(ctx, "/api/insights/export", qv, *out); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(a.out, "wrote %s\n", *out)
		return nil
	}

	var resp map[string]any
	if err := a.call(ctx, http.MethodGet, "/api/insights/"+view, qv, false, nil, &resp); err != nil {
		return err
	}
	return a.printJSON(resp)
}

func (a *app) runs(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "start":
		fs := flag.NewFlagSet("runs start", flag.ExitOnError)
		wait := fs.Bool("wait", false, "poll until the run finishes")
		every := fs.Duration("poll", 2*time.Second, "poll interval with -wait")
		_ = fs.Parse(args)

		var resp runResponse
		if err := a.call(ctx, http.MethodPost, "/api/runs", nil, true, nil, &resp); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				return fmt.Errorf("another run is in progress: %w", err)
			}
			return err
		}
		fmt.Fprintf(a.out, "run %s %s\n", resp.RunID, resp.Status)
		if !*wait {
			return nil
		}
		run, err := a.waitRun(ctx, resp.RunID, *every)
		if err != nil {
			return err
		}
		if err := a.printJSON(run); err != nil {
			return err
		}
		if run.Status == store.RunFailed {
			return fmt.Errorf("%w: %s", errRunFailed, run.Error)
		}
		return nil

	case "show":
		fs := flag.NewFlagSet("runs show", flag.ExitOnError)
		id := fs.String("id", "", "run id")
		_ = fs.Parse(args)
		if *id == "" {
			return usage("dealctl runs show -id <run id>")
		}
		var run store.Run
		if err := a.call(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(*id), nil, true, nil, &run); err != nil {
			return err
		}
		return a.printJSON(run)

	default:
		return usage("dealctl runs <start|show>")
	}
}

// waitRun polls a run until it leaves the running state.
func (a *app) waitRun(ctx context.Context, id string, every time.Duration) (*store.Run, error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		var run store.Run
		if err := a.call(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, true, nil, &run); err != nil {
			return nil, fmt.Errorf("poll run %s: %w", id, err)
		}
		if run.Status != store.RunRunning {
			return &run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func printUsage() {
	fmt.Println("dealctl [-api URL] [-token FILE] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|change-password|logout")
	fmt.Println("  deals search|show")
	fmt.Println("  company show")
	fmt.Println("  insights " + strings.Join(insightViews, "|") + "|export")
	fmt.Println("  runs start [-wait]|show")
	fmt.Println("  events listen|subscribe")
}
