package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"spxcore/fractal/pkg/cli"
	"spxcore/fractal/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without starting the server.

The validate command loads the configuration, applies defaults and
environment overrides, and runs the full validation pass. All field
errors are reported at once rather than stopping at the first one.

Examples:
  # Validate the default config file
  fractal validate

  # Validate a specific file
  fractal validate --config /etc/fractal/config.yaml

  # Machine-readable report
  fractal validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

type validationReport struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	report := validationReport{File: cfgFile, Valid: true}

	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		report.Valid = false
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fieldErr := range verr.Errors {
				report.Errors = append(report.Errors, fieldErr.Error())
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	if cli.OutputFormat(validateFlags.format) == cli.FormatJSON {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return cli.NewCommandError("validate", err)
		}
	} else {
		if report.Valid {
			fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
		} else {
			fmt.Printf("✗ Configuration invalid: %s\n", cfgFile)
			for _, msg := range report.Errors {
				fmt.Printf("  - %s\n", msg)
			}
		}
	}

	if !report.Valid {
		return cli.NewConfigError("", fmt.Sprintf("%d validation error(s)", len(report.Errors)))
	}
	return nil
}
