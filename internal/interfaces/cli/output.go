package cli

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

// textRenderer is implemented by results with a human readable summary.
type textRenderer interface {
	RenderText(w io.Writer) error
}

// tableRenderer is implemented by results that can be listed as rows.
type tableRenderer interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes data to stdout in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	w := cmd.OutOrStdout()

	switch format {
	case "json":
		return printJSON(w, data)
	case "yaml":
		return printYAML(w, data)
	case "table":
		if tr, ok := data.(tableRenderer); ok {
			return printTable(w, tr.TableHeaders(), tr.TableRows())
		}
	}
	if tr, ok := data.(textRenderer); ok {
		return tr.RenderText(w)
	}
	_, err := fmt.Fprintf(w, "%+v\n", data)
	return err
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printYAML round-trips data through JSON so the YAML keys match the JSON
// field names of the API.
func printYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode result")
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode result")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode result")
	}
	return enc.Close()
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	table.Header(header...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintError writes err to stderr, leading with the error code for
// application errors.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	label := color.New(color.FgRed, color.Bold).Sprint("Error:")
	var appErr *errors.AppError
	if stdliberrors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Detail != "" {
			msg += ": " + appErr.Detail
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s)\n", label, msg, appErr.Code)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", label, err)
}

func warnf(w io.Writer, format string, args ...interface{}) {
	_, _ = color.New(color.FgYellow).Fprintf(w, format, args...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
