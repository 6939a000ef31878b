package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/trustpulse/pkg/data"
)

var (
	orgNameFlag = &cli.StringFlag{
		Name:     "org",
		Usage:    "Name of the GitHub organization or user",
		Required: true,
	}

	repoNameFlag = &cli.StringFlag{
		Name:     "repo",
		Usage:    "Name of the GitHub repository",
		Required: true,
	}

	monthsFlag = &cli.IntFlag{
		Name:  "months",
		Usage: fmt.Sprintf("Number of months to import (default: %d)", data.ImportAgeMonthsDefault),
		Value: data.ImportAgeMonthsDefault,
	}

	importCmd = &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import closed pull requests as trust events",
		UsageText: `trustpulse import --org acme --repo widgets
   trustpulse import --org acme --repo widgets --months 12`,
		Action: cmdImport,
		Flags: []cli.Flag{
			orgNameFlag,
			repoNameFlag,
			monthsFlag,
		},
	}
)

type importOutput struct {
	data.ImportResult `yaml:",inline"`
	Duration          string `json:"duration" yaml:"duration"`
}

func cmdImport(c *cli.Context) error {
	start := time.Now()
	org := c.String(orgNameFlag.Name)
	repo := c.String(repoNameFlag.Name)
	months := c.Int(monthsFlag.Name)

	token, err := getGitHubToken()
	if err != nil {
		return fmt.Errorf("getting GitHub token: %w", err)
	}

	if token == "" {
		slog.Warn("no GitHub token stored, using unauthenticated rate limits (run: trustpulse auth)")
	}

	cfg := getConfig(c)

	res, err := data.ImportEvents(c.Context, cfg.DB, token, org, repo, months)
	if err != nil {
		return fmt.Errorf("importing events for %s/%s: %w", org, repo, err)
	}

	out := &importOutput{
		ImportResult: *res,
		Duration:     time.Since(start).String(),
	}

	if err := encode(out); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	return nil
}
