package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/framelink/framelink/config"
)

func init() {
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "print a default config to start from",
	RunE:  generate,
}

func generate(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(config.DefaultStore())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Println(string(data)) // CLI output.
	return nil
}
