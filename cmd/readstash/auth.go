package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/readwise"
)

// readToken is a test seam for term.ReadPassword.
var readToken = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store and verify the API access token",
	Long: `Prompts for the API access token (input is not echoed), verifies it
against the API, and saves it to the .env file in the working
directory. The token never goes into the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Print("API token: ")
		raw, err := readToken()
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return errors.New("empty token")
		}

		// One tiny fetch proves the token works before it is saved.
		client := readwise.NewClient(cfg.BaseURL, token,
			readwise.WithPageSize(1),
			readwise.WithLogger(newLogger(cfg.LogLevel)),
		)
		if _, err := client.FetchPage(ctx, readwise.PageRequest{Resource: readwise.ResourceBooks}); err != nil {
			if errors.Is(err, common.ErrUnauthorized) {
				return errors.New("token rejected by the API")
			}
			return fmt.Errorf("verify token: %w", err)
		}

		env, err := godotenv.Read()
		if err != nil {
			env = map[string]string{}
		}
		env["READSTASH_TOKEN"] = token
		if err := godotenv.Write(env, ".env"); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Println("token verified and saved to .env")
		return nil
	},
}
