package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/margin/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the position journal",
	Long: `Query and display position records from the SQLite journal.

Subcommands:
  position - Get details of a specific position by ID
  today    - List positions closed today
  day      - List positions closed on a specific day

Examples:
  margin journal position <position-id>
  margin journal today
  margin journal day 2026-01-15`,
}

var journalPositionCmd = &cobra.Command{
	Use:   "position <position-id>",
	Short: "Get details of a specific position",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalPosition,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List positions closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List positions closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalPositionCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./margin.sqlite", "path to SQLite journal DB")
}

func runJournalPosition(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetPosition(args[0])
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}
	printPositions([]journal.PositionRecord{rec})
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(time.Now())
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	day, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return listDay(day)
}

func listDay(day time.Time) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListPositionsClosedOnDay(day, time.Local)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	printPositions(recs)
	return nil
}

func printPositions(recs []journal.PositionRecord) {
	if len(recs) == 0 {
		fmt.Println("No positions.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tSIDE\tQTY\tLEV\tENTRY\tEXIT\tPNL\tSTATUS\tCLOSED\tREASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dx\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PositionID, r.Symbol, r.Side, r.Quantity, r.Leverage,
			r.EntryPrice, r.ExitPrice, r.RealizedPnl.StringFixed(2), r.Status,
			r.CloseTime.Local().Format(time.DateTime), r.Reason)
	}
	w.Flush()
}
