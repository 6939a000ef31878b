package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/trustpulse/pkg/snapshot"
)

var (
	outFileFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Path to write the snapshot JSON (optional, defaults to stdout)",
	}

	snapshotCmd = &cli.Command{
		Name:  "snapshot",
		Usage: "Build the full leaderboard snapshot for a repo",
		UsageText: `trustpulse snapshot --org acme --repo widgets
   trustpulse snapshot --org acme --repo widgets --out public/scores.json`,
		Action: cmdSnapshot,
		Flags: []cli.Flag{
			orgNameFlag,
			repoNameFlag,
			outFileFlag,
			scoringConfigFlag,
			legacyFlag,
		},
	}
)

func cmdSnapshot(c *cli.Context) error {
	cfg := getConfig(c)

	scoring, err := resolveScoringConfig(c)
	if err != nil {
		return err
	}

	org := c.String(orgNameFlag.Name)
	repo := c.String(repoNameFlag.Name)

	s, err := snapshot.Build(c.Context, cfg.DB, org, repo, scoring, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("building snapshot for %s/%s: %w", org, repo, err)
	}

	if out := c.String(outFileFlag.Name); out != "" {
		if err := snapshot.Write(out, s); err != nil {
			return err
		}
		slog.Info("snapshot written", "path", out, "contributors", len(s.Contributors))
		return nil
	}

	if err := encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	return nil
}
