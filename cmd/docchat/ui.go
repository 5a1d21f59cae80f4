package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kalambet/docchat/internal/tui"
)

func newUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal page (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, flags)
		},
	}
}

func runUI(cmd *cobra.Command, flags *rootFlags) error {
	// The page owns the terminal, so logs stay in the file.
	a, err := newApp(appOptions{backendURL: flags.backendURL})
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(a.uploads, a.queries, a.renderOptions(), a.client.BaseURL())
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
