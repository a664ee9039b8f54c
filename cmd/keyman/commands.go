package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/service"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create key material and an empty vault directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			created := svc.CreatedKeyFiles()
			if len(created) == 0 {
				fmt.Fprintf(a.out, "vault already initialised in %s\n", svc.Dir())
				return nil
			}
			for _, path := range created {
				fmt.Fprintf(a.out, "%s %s\n", okStyle("created"), filepath.Base(path))
			}
			fmt.Fprintf(a.out, "vault ready in %s\n", svc.Dir())
			return nil
		},
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	var keyText string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a license key and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			rec, err := svc.GenerateAndStore(keyText)
			if err != nil {
				return asUserError(err)
			}
			fmt.Fprintln(a.out, rec.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyText, "key", "", "store this key text instead of generating one")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			return asUserError(renderRecords(a.out, svc.ListRecords(), output))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show INDEX",
		Short: "Print the key at INDEX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			text, err := svc.ExportRecordText(index)
			if err != nil {
				return asUserError(err)
			}
			fmt.Fprintln(a.out, text)
			return nil
		},
	}
}

func newCopyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copy INDEX",
		Short: "Copy the key at INDEX to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			text, err := svc.ExportRecordText(index)
			if err != nil {
				return asUserError(err)
			}
			if err := clipboard.WriteAll(text); err != nil {
				return fmt.Errorf("copy to clipboard: %w", err)
			}
			fmt.Fprintf(a.out, "key #%d copied to clipboard\n", index)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete INDEX",
		Short: "Delete the key at INDEX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			rec, err := svc.ListRecords().At(index)
			if err != nil {
				return asUserError(err)
			}
			if !yes {
				ok, err := a.confirm(fmt.Sprintf("delete key #%d (%s)? [y/N] ", index, rec.Key))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "aborted")
					return nil
				}
			}
			if err := svc.DeleteRecord(index); err != nil {
				return asUserError(err)
			}
			fmt.Fprintf(a.out, "%s key #%d\n", okStyle("deleted"), index)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Check the sealed vault file without decrypting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			rep, err := svc.Inspect()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return userError{msg: "no vault file yet"}
				}
				if errors.Is(err, vaulterr.ErrFormat) {
					return userError{msg: err.Error()}
				}
				return err
			}
			renderReport(a.out, svc.VaultPath(), rep)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return asUserError(err)
			}
			events, err := svc.History(limit)
			if err != nil {
				if errors.Is(err, service.ErrJournalDisabled) {
					return userError{msg: "journal is disabled (journal.enabled: false)"}
				}
				return err
			}
			renderEvents(a.out, events)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show (0 for all)")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, cliVersion)
		},
	}
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 0 {
		return 0, userError{msg: fmt.Sprintf("invalid index %q", arg)}
	}
	return index, nil
}

func (a *app) confirm(prompt string) (bool, error) {
	fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
