// Command authorize performs the one-time interactive OAuth bootstrap:
// it prints the consent URL, reads the authorization code from stdin
// and persists the resulting refresh token for the unattended daemons.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dhkim/bankfeed/internal/config"
	"github.com/dhkim/bankfeed/internal/credential"
	"github.com/dhkim/bankfeed/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		log.Fatal().Msg("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	mgr := credential.NewManager(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.TokenFile)

	fmt.Println("Open the following URL in a browser and grant read access:")
	fmt.Println()
	fmt.Println("  " + mgr.AuthURL())
	fmt.Println()
	fmt.Print("Paste the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read authorization code")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		log.Fatal().Msg("Empty authorization code")
	}

	if err := mgr.Exchange(context.Background(), code); err != nil {
		log.Fatal().Err(err).Msg("Authorization failed")
	}

	log.Info().Str("token_file", credential.ExpandHome(cfg.TokenFile)).Msg("Authorization stored")
}
