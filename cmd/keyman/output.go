package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/db"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/envelope"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
)

var (
	dimStyle  = color.New(color.FgHiBlack).SprintfFunc()
	okStyle   = color.New(color.FgGreen).SprintfFunc()
	warnStyle = color.New(color.FgYellow).SprintfFunc()
	badStyle  = color.New(color.FgRed).SprintfFunc()
	keyStyle  = color.New(color.FgMagenta).SprintfFunc()
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

const timeLayout = "2006-01-02 15:04:05"

// recordView is the json/yaml shape of a record.
type recordView struct {
	Index     int       `json:"index" yaml:"index"`
	Key       string    `json:"key" yaml:"key"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func renderRecords(w io.Writer, records vault.Vault, format string) error {
	views := make([]recordView, len(records))
	for i, r := range records {
		views[i] = recordView{Index: i, Key: r.Key, CreatedAt: r.CreatedAt}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		if len(views) == 0 {
			fmt.Fprintln(w, dimStyle("no keys stored"))
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tKEY\tCREATED")
		for _, v := range views {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", v.Index, keyStyle("%s", v.Key), v.CreatedAt.Local().Format(timeLayout))
		}
		return tw.Flush()
	default:
		return userError{msg: fmt.Sprintf("unknown output format %q", format)}
	}
}

func renderReport(w io.Writer, path string, rep envelope.Report) {
	fmt.Fprintf(w, "file:        %s\n", path)
	fmt.Fprintf(w, "encoded:     %d bytes\n", rep.EncodedSize)
	fmt.Fprintf(w, "ciphertext:  %d bytes\n", rep.CiphertextSize)
	if rep.DigestValid {
		fmt.Fprintf(w, "digest:      %s\n", okStyle("valid"))
	} else {
		fmt.Fprintf(w, "digest:      %s\n", badStyle("MISMATCH"))
	}
}

func renderEvents(w io.Writer, events []db.EventRow) {
	if len(events) == 0 {
		fmt.Fprintln(w, dimStyle("no events"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tFINGERPRINT\tRECORDS\tRESULT")
	for _, ev := range events {
		result := okStyle("ok")
		if !ev.Success {
			result = badStyle("failed")
			if ev.Detail != "" {
				result += " " + ev.Detail
			}
		}
		fp := ev.Fingerprint
		if fp == "" {
			fp = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			ev.CreatedAt.Local().Format(timeLayout), ev.Action, fp, ev.RecordCount, result)
	}
	_ = tw.Flush()
}
