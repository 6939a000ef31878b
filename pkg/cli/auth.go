package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/trustpulse/pkg/auth"
)

const clientID = "a4e9c7d02b16f3e881c4"

var authCmd = &cli.Command{
	Name:            "auth",
	HideHelpCommand: true,
	Usage:           "Authenticate to GitHub to obtain an access token",
	Action:          cmdInitAuthFlow,
}

func cmdInitAuthFlow(_ *cli.Context) error {
	code, err := auth.GetDeviceCode(clientID)
	if err != nil {
		return fmt.Errorf("getting device code: %w", err)
	}

	fmt.Printf("1). Copy this code: %s\n", code.UserCode)
	fmt.Printf("2). Navigate to this URL in your browser to authenticate: %s\n", code.VerificationURL)
	fmt.Print("3). Hit enter to complete the process:\n")
	fmt.Print(">")

	if _, err = fmt.Scanln(); err != nil {
		return fmt.Errorf("reading user input: %w", err)
	}

	token, err := auth.GetToken(clientID, code)
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	if err = auth.SaveToken(getHomeDir(), token.AccessToken); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Println("Token saved")
	return nil
}

func getGitHubToken() (string, error) {
	return auth.LoadToken(getHomeDir())
}
