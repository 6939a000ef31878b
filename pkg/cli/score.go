package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/trustpulse/pkg/data"
	"github.com/mchmarny/trustpulse/pkg/trust"
)

var (
	contributorFlag = &cli.StringFlag{
		Name:     "contributor",
		Aliases:  []string{"c"},
		Usage:    "GitHub username to score",
		Required: true,
	}

	scoringConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a YAML scoring config (optional, defaults to built-in tunings)",
	}

	legacyFlag = &cli.BoolFlag{
		Name:  "legacy",
		Usage: "Use the legacy dashboard tunings instead of the current defaults",
	}

	stateFileFlag = &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to a JSON or YAML contributor state file",
		Required: true,
	}

	scoreCmd = &cli.Command{
		Name:    "score",
		Aliases: []string{"s"},
		Usage:   "Compute the trust score for one contributor",
		UsageText: `trustpulse score --org acme --repo widgets --contributor alice
   trustpulse score --org acme --repo widgets -c alice --config tunings.yaml`,
		Action: cmdScore,
		Flags: []cli.Flag{
			orgNameFlag,
			repoNameFlag,
			contributorFlag,
			scoringConfigFlag,
			legacyFlag,
		},
	}

	historyCmd = &cli.Command{
		Name:   "history",
		Usage:  "Compute the score trend for one contributor, one point per event",
		Action: cmdHistory,
		Flags: []cli.Flag{
			orgNameFlag,
			repoNameFlag,
			contributorFlag,
			scoringConfigFlag,
			legacyFlag,
		},
	}

	simulateCmd = &cli.Command{
		Name:  "simulate",
		Usage: "Score a contributor state from a local JSON file, no database or network",
		UsageText: `trustpulse simulate --file state.json
   trustpulse simulate -f state.json --legacy`,
		Action: cmdSimulate,
		Flags: []cli.Flag{
			stateFileFlag,
			scoringConfigFlag,
			legacyFlag,
		},
	}
)

func cmdScore(c *cli.Context) error {
	cfg := getConfig(c)

	scoring, err := resolveScoringConfig(c)
	if err != nil {
		return err
	}

	state, err := data.GetContributorState(cfg.DB, c.String(orgNameFlag.Name), c.String(repoNameFlag.Name), c.String(contributorFlag.Name))
	if err != nil {
		return fmt.Errorf("loading contributor state: %w", err)
	}

	res := trust.Compute(*state, scoring, time.Now().UTC().UnixMilli())

	if err := encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	return nil
}

func cmdHistory(c *cli.Context) error {
	cfg := getConfig(c)

	scoring, err := resolveScoringConfig(c)
	if err != nil {
		return err
	}

	state, err := data.GetContributorState(cfg.DB, c.String(orgNameFlag.Name), c.String(repoNameFlag.Name), c.String(contributorFlag.Name))
	if err != nil {
		return fmt.Errorf("loading contributor state: %w", err)
	}

	points := trust.ComputeHistory(*state, scoring, time.Now().UTC().UnixMilli())

	if err := encode(points); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	return nil
}

func cmdSimulate(c *cli.Context) error {
	scoring, err := resolveScoringConfig(c)
	if err != nil {
		return err
	}

	statePath := c.String(stateFileFlag.Name)
	b, err := os.ReadFile(statePath)
	if err != nil {
		return fmt.Errorf("reading state file %s: %w", statePath, err)
	}

	var state trust.ContributorState
	switch strings.ToLower(filepath.Ext(statePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &state)
	default:
		err = json.Unmarshal(b, &state)
	}
	if err != nil {
		return fmt.Errorf("parsing state file %s: %w", statePath, err)
	}

	res := trust.Compute(state, scoring, time.Now().UTC().UnixMilli())

	if err := encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	return nil
}

// resolveScoringConfig picks the scoring tunings for a command: an explicit
// config file wins, then the legacy flag, then the defaults.
func resolveScoringConfig(c *cli.Context) (*trust.Config, error) {
	if p := c.String(scoringConfigFlag.Name); p != "" {
		cfg, err := trust.LoadConfig(p)
		if err != nil {
			return nil, fmt.Errorf("loading scoring config: %w", err)
		}
		return cfg, nil
	}
	if c.Bool(legacyFlag.Name) {
		return trust.LegacyDashboardConfig(), nil
	}
	return trust.DefaultConfig(), nil
}
