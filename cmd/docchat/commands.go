package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/docchat/internal/backend"
	"github.com/kalambet/docchat/internal/config"
	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

// --- upload ---

func newUploadCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document to the ingestion service",
		Long: `Upload a document to the ingestion service.

Examples:
  docchat upload ./policy.pdf
  docchat --backend http://rag.internal:8000 upload ./policy.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{backendURL: flags.backendURL, mirror: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			return uploadFile(cmd, a, args[0])
		},
	}
}

func uploadFile(cmd *cobra.Command, a *app, path string) error {
	f, err := session.OpenPath(path)
	if err != nil {
		return err
	}
	a.uploads.SelectFile(f)

	printStep("%s %s", session.StatusUploading, f.Name)
	st, err := a.uploads.Submit(cmd.Context())
	if err != nil {
		return err
	}
	if st.Phase != session.Succeeded {
		return errors.New(st.Status())
	}

	printSuccess("%s %s", st.Status(), st.FileName)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: document %s, %d chunks\n", st.FileName, st.Result.DocumentID, st.Result.ChunksCount)
	return nil
}

// --- ask ---

func newAskCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded document",
		Long: `Ask a question about the uploaded document. The question is sent
exactly as typed; multiple arguments are joined with single spaces.

Examples:
  docchat ask "What is the lending limit?"
  docchat ask --upload ./policy.pdf "What is the lending limit?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadPath, _ := cmd.Flags().GetString("upload")

			a, err := newApp(appOptions{backendURL: flags.backendURL, mirror: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			if uploadPath != "" {
				if err := uploadFile(cmd, a, uploadPath); err != nil {
					return err
				}
			}

			a.queries.SetQuestion(strings.Join(args, " "))
			printStep("%s", session.StatusThinking)
			st, err := a.queries.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if st.Phase != session.Succeeded {
				return errors.New(st.Status())
			}

			writeExchange(cmd.OutOrStdout(), st.Exchange, a.renderOptions())
			return nil
		},
	}
	cmd.Flags().String("upload", "", "upload this file before asking")
	return cmd
}

func writeExchange(w io.Writer, ex *session.ChatExchange, opts render.Options) {
	fmt.Fprintln(w, ex.Answer)
	if lines := render.Citations(ex.Sources, opts); len(lines) > 0 {
		fmt.Fprintf(w, "\n%s\n%s", labelColor.Sprint("Sources:"), render.Text(lines))
	}
}

// --- status ---

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the ingestion service is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{backendURL: flags.backendURL})
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.client.Health(cmd.Context())
			if err != nil {
				printStatus("Backend", "unreachable at %s (%s)", a.client.BaseURL(), backend.Message(err))
				return err
			}

			printStatus("Backend", "%s at %s", h.Status, a.client.BaseURL())
			if h.Message != "" {
				printStatus("Message", "%s", h.Message)
			}
			printStatus("Page", "http://127.0.0.1:%d", a.cfg.Server.Port)
			printStatus("Log file", "%s", a.cfg.Log.File)
			return nil
		},
	}
}

// --- config ---

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			for _, k := range config.ShowAll(cfg) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", labelColor.Sprint(k.Key), k.Value)
			}
			return nil
		},
	}

	configSetCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if err := config.SetKey(key, value); err != nil {
				return err
			}

			printSuccess("Set %s = %s", key, value)
			if _, err := config.Load(); err != nil {
				printWarning("configuration is now invalid: %v", err)
			}
			return nil
		},
	}

	configUnsetCmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value so its default applies",
		Long:  "Remove a configuration value from the config file. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.UnsetKey(args[0]); err != nil {
				return err
			}
			printSuccess("Unset %s", args[0])
			return nil
		},
	}

	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
	return configCmd
}
