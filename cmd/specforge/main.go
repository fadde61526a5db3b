package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/cli"
)

func main() {
	root := &cobra.Command{
		Use:   "specforge",
		Short: "Generate deterministic test cases from interface descriptions",
	}

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newValidateCmd())

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newGenerateCmd() *cobra.Command {
	var configPath string
	var input string
	var kind string
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a test-case bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunGenerate(cmd.Context(), cli.RunGenerateParams{
				ConfigPath: configPath,
				Fallback: cli.FallbackParams{
					Spec:   input,
					Kind:   kind,
					Output: output,
				},
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to specforge.yaml config")
	// Fallback flags for running without a config file
	cmd.Flags().StringVar(&input, "input", "", "Interface description (OpenAPI yaml/json, .go, .ts)")
	cmd.Flags().StringVar(&kind, "kind", "", "Source kind (openapi, go, typescript); inferred when omitted")
	cmd.Flags().StringVar(&output, "out", "", "Output file for the bundle (stdout when omitted)")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var input string
	var kind string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Normalize an interface description and report what survives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunValidate(input, kind)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Interface description (OpenAPI yaml/json, .go, .ts)")
	cmd.Flags().StringVar(&kind, "kind", "", "Source kind (openapi, go, typescript); inferred when omitted")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
