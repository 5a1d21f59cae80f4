package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	noColor    bool
	backendURL string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Upload a PDF and ask questions answered from its content",
		Long: `docchat talks to a document question-answering service: upload a PDF,
then ask questions and get answers with the passages they were drawn from.

Run without a subcommand to open the terminal page.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, flags)
		},
	}

	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().StringVar(&flags.backendURL, "backend", "", "ingestion service base URL (overrides backend.base_url)")

	root.AddCommand(
		newUICmd(flags),
		newUploadCmd(flags),
		newAskCmd(flags),
		newStatusCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newConfigCmd(),
	)
	return root
}
