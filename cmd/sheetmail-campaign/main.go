// Command sheetmail-campaign runs a mail-merge campaign over a sheet,
// immediately or deferred with -at. With SHEETMAIL_JOBS set, pending
// deferred jobs survive restarts and are re-armed on start.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/unfoldedlabs/sheetmail/internal/campaign"
	"github.com/unfoldedlabs/sheetmail/internal/config"
	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	"github.com/unfoldedlabs/sheetmail/internal/engine"
	"github.com/unfoldedlabs/sheetmail/internal/runtime"
	"github.com/unfoldedlabs/sheetmail/internal/schedule"
	"github.com/unfoldedlabs/sheetmail/internal/session"
	"github.com/unfoldedlabs/sheetmail/internal/sheets"
)

type campaignFlags struct {
	sheet     string
	tab       string
	subject   string
	body      string
	bodyFile  string
	from      string
	attach    string
	delay     time.Duration
	signature bool
	at        string
	list      bool
	cancel    string
}

func main() {
	if err := run(); err != nil {
		runtime.DefaultLogger().Error("sheetmail-campaign failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(cfg *config.Config) campaignFlags {
	var f campaignFlags
	flag.StringVar(&f.sheet, "sheet", "", "spreadsheet id or full Sheets URL")
	flag.StringVar(&f.tab, "tab", "", "sheet tab title (default: first tab)")
	flag.StringVar(&f.subject, "subject", "", "subject template, ((Header)) placeholders allowed")
	flag.StringVar(&f.body, "body", "", "body template")
	flag.StringVar(&f.bodyFile, "body-file", "", "read the body template from a file")
	flag.StringVar(&f.from, "from", "", "optional From header (verified alias)")
	flag.StringVar(&f.attach, "attach", "", "comma separated attachment paths")
	flag.DurationVar(&f.delay, "delay", cfg.DefaultDelay, "gap between sends (jitter is added on top)")
	flag.BoolVar(&f.signature, "signature", false, "append the account's primary signature")
	flag.StringVar(&f.at, "at", "", "defer the run to this RFC3339 time")
	flag.BoolVar(&f.list, "list", false, "list pending scheduled jobs and exit")
	flag.StringVar(&f.cancel, "cancel", "", "cancel the scheduled job with this id and exit")
	flag.Parse()
	return f
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	f := parseFlags(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var jobStore schedule.Store
	if cfg.JobsPath != "" {
		jobStore = schedule.NewFile(cfg.JobsPath)
	}

	if f.list || f.cancel != "" {
		return manageJobs(jobStore, f)
	}

	store, err := credstore.OpenSQLite(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	log := runtime.DefaultLogger()
	eng := engine.New(session.New(store, log), jobStore, log)

	spreadsheetID := sheets.ExtractSheetID(f.sheet)
	if spreadsheetID == "" {
		return fmt.Errorf("-sheet is not a spreadsheet id or URL: %q", f.sheet)
	}
	body, err := resolveBody(f.body, f.bodyFile)
	if err != nil {
		return err
	}
	params := campaign.Params{
		SpreadsheetID: spreadsheetID,
		SheetTitle:    f.tab,
		Subject:       f.subject,
		Body:          body,
		From:          f.from,
		Attachments:   splitList(f.attach),
		Delay:         f.delay,
		UseSignature:  f.signature,
	}

	if f.at == "" {
		sum, err := eng.Run(ctx, params)
		if err != nil {
			return err
		}
		fmt.Printf("attempted %d, sent %d, failed %d, skipped %d\n",
			sum.Attempted, sum.Sent, sum.Failed, sum.Skipped)
		return nil
	}
	return runDeferred(ctx, eng, params, f.at)
}

// runDeferred schedules params for the given RFC3339 time and blocks
// until every pending job has fired. Persisted jobs are re-armed here
// and only here: the immediate path exits as soon as its campaign
// finishes, so restoring there would fire restored jobs into a dying
// process.
func runDeferred(ctx context.Context, eng *engine.Engine, params campaign.Params, at string) error {
	startAt, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return fmt.Errorf("parse -at: %w", err)
	}
	if err := eng.Jobs.Restore(); err != nil {
		eng.Log.Warn("cannot restore scheduled jobs", "error", err)
	}
	params.StartAt = startAt
	job := eng.ScheduleOneTime(params)
	fmt.Printf("scheduled job %s for %s\n", job.ID, job.FireAt.Format(time.RFC3339))
	return waitForJobs(ctx, eng)
}

// waitForJobs keeps the process alive until every pending job fires.
func waitForJobs(ctx context.Context, eng *engine.Engine) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			eng.Jobs.Close()
			return ctx.Err()
		case <-ticker.C:
			if len(eng.ListScheduled()) == 0 {
				return nil
			}
		}
	}
}

func manageJobs(jobStore schedule.Store, f campaignFlags) error {
	if jobStore == nil {
		return fmt.Errorf("set SHEETMAIL_JOBS to manage persisted jobs")
	}
	if f.cancel != "" {
		if err := jobStore.Delete(f.cancel); err != nil {
			return err
		}
		fmt.Printf("canceled %s\n", f.cancel)
		return nil
	}
	jobs, err := jobStore.List()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no pending jobs")
		return nil
	}
	for _, j := range jobs {
		fmt.Printf("%s  %s  %s  %q\n",
			j.ID, j.FireAt.Format(time.RFC3339), j.Params.SpreadsheetID, j.Params.Subject)
	}
	return nil
}

func resolveBody(body, bodyFile string) (string, error) {
	if bodyFile == "" {
		return body, nil
	}
	buf, err := os.ReadFile(bodyFile)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	return string(buf), nil
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
