package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-service/internal/auth"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "API key utilities",
}

var generateAPIKeyCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key and print its fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		keys, err := auth.NewAPIKeys(cfg.Security.APIKeySecret)
		if err != nil {
			return err
		}
		key, err := keys.Generate()
		if err != nil {
			return fmt.Errorf("generate api key: %w", err)
		}
		fmt.Println("key:        ", key)
		fmt.Println("fingerprint:", keys.Fingerprint(key))
		return nil
	},
}

func init() {
	apiKeyCmd.AddCommand(generateAPIKeyCmd)
	rootCmd.AddCommand(apiKeyCmd)
}
