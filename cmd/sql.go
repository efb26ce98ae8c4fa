package cmd

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	sqlFile        string
	sqlFormat      string
	sqlInteractive bool
)

var sqlCmd = &cobra.Command{
	Use:   "sql [QUERY]",
	Short: "Run raw SQL against the read-only store handle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		db := st.DB()

		if sqlInteractive {
			return runSQLRepl(db)
		}

		query, err := resolveSQLQuery(args)
		if err != nil {
			return err
		}
		return runSQLOnce(db, query)
	},
}

func resolveSQLQuery(args []string) (string, error) {
	if sqlFile != "" {
		data, err := os.ReadFile(sqlFile)
		if err != nil {
			return "", fmt.Errorf("%w: read --file: %v", ErrUsage, err)
		}
		return string(data), nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return "", fmt.Errorf("%w: pass a QUERY argument, --file, or -i", ErrUsage)
}

func runSQLOnce(db *sql.DB, query string) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	return renderRows(rows, sqlFormat)
}

func runSQLRepl(db *sql.DB) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprintln(os.Stderr, "repoindex sql> (Ctrl-D to exit)")
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return nil
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if err := runSQLOnce(db, query); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func renderRows(rows *sql.Rows, format string) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var records [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		scanDest := make([]any, len(cols))
		for i := range values {
			scanDest[i] = &values[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return err
		}
		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = fmt.Sprintf("%v", v)
			if v == nil {
				record[i] = ""
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	switch format {
	case "json":
		return renderJSON(cols, records)
	case "csv":
		return renderCSV(cols, records)
	default:
		return renderTable(cols, records)
	}
}

func renderJSON(cols []string, records [][]string) error {
	out := make([]map[string]string, 0, len(records))
	for _, r := range records {
		row := make(map[string]string, len(cols))
		for i, c := range cols {
			row[c] = r[i]
		}
		out = append(out, row)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(cols []string, records [][]string) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err := w.Write(cols); err != nil {
		return err
	}
	return w.WriteAll(records)
}

func renderTable(cols []string, records [][]string) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range records {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func init() {
	sqlCmd.Flags().StringVar(&sqlFile, "file", "", "read the query from this file instead of an argument")
	sqlCmd.Flags().StringVar(&sqlFormat, "format", "table", "output format: table, json, csv")
	sqlCmd.Flags().BoolVarP(&sqlInteractive, "interactive", "i", false, "start an interactive SQL REPL")
}
