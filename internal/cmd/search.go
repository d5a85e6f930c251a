package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/MeKo-Tech/nusantaramap/internal/search"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "List regencies whose name contains the query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("format", "text", "Output format (text, json, yaml)")
	if err := viper.BindPFlag("search.format", searchCmd.Flags().Lookup("format")); err != nil {
		panic(fmt.Sprintf("failed to bind flag format: %v", err))
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := loadSession(ctx, 0, 0)
	if err != nil {
		return err
	}
	results, err := session.Search(strings.Join(args, " "))
	if err != nil {
		return err
	}

	return writeFormatted(cmd.OutOrStdout(), viper.GetString("search.format"), results, func(w io.Writer) {
		writeSearchText(w, results)
	})
}

func writeSearchText(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching regency")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGENCY\tPROVINCE\tBOUNDS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.3f,%.3f,%.3f,%.3f\n", r.Name, r.Province,
			r.Bounds.MinLon, r.Bounds.MinLat, r.Bounds.MaxLon, r.Bounds.MaxLat)
	}
	_ = tw.Flush()
}
