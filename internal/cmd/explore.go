package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/nusantaramap/internal/selection"
	"github.com/MeKo-Tech/nusantaramap/internal/server"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Drill down through provinces and regencies interactively",
	Long: `explore drives the selection from the terminal: pick a province, then a
regency, or search by name. After every step it prints the view command a
map widget would receive.`,
	RunE: runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

type menuAction int

const (
	actionProvince menuAction = iota
	actionRegency
	actionSearch
	actionDetails
	actionClearRegency
	actionReset
	actionQuit
)

type menuItem struct {
	label  string
	action menuAction
	name   string
}

// exploreMenu lists the choices available in the selection's state.
func exploreMenu(snap server.Snapshot, provinces, regencies []string, searchEnabled bool) []menuItem {
	var items []menuItem
	switch snap.State {
	case selection.Idle:
		for _, p := range provinces {
			items = append(items, menuItem{label: p, action: actionProvince, name: p})
		}
	case selection.ProvinceSelected:
		for _, r := range regencies {
			items = append(items, menuItem{label: r, action: actionRegency, name: r})
		}
	case selection.ProvinceAndRegencySelected:
		items = append(items,
			menuItem{label: "Show details of " + snap.Regency, action: actionDetails, name: snap.Regency},
			menuItem{label: "Back to " + snap.Province, action: actionClearRegency},
		)
	}
	if searchEnabled {
		items = append(items, menuItem{label: "Search regency...", action: actionSearch})
	}
	if snap.State != selection.Idle {
		items = append(items, menuItem{label: "Back to Indonesia", action: actionReset})
	}
	return append(items, menuItem{label: "Quit", action: actionQuit})
}

func runExplore(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := loadSession(ctx, viper.GetInt("serve.viewport_width"), viper.GetInt("serve.viewport_height"))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	searchEnabled := session.Options().ShowSearch

	for ctx.Err() == nil {
		snap := session.Snapshot()
		provinces, regencies := session.Names()
		items := exploreMenu(snap, provinces, regencies, searchEnabled)

		labels := make([]string, len(items))
		for i, it := range items {
			labels[i] = it.label
		}
		prompt := promptui.Select{
			Label: exploreLabel(snap),
			Items: labels,
			Size:  12,
			Searcher: func(input string, index int) bool {
				return strings.Contains(strings.ToLower(labels[index]), strings.ToLower(input))
			},
		}
		idx, _, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("menu: %w", err)
		}

		item := items[idx]
		if item.action == actionQuit {
			return nil
		}
		if err := applyMenuItem(ctx, out, session, item); err != nil {
			fmt.Fprintf(out, "  %v\n", err)
		}
	}
	return nil
}

func applyMenuItem(ctx context.Context, out io.Writer, session *server.Session, item menuItem) error {
	var (
		changed bool
		snap    server.Snapshot
		err     error
	)
	switch item.action {
	case actionProvince:
		changed, snap, err = session.SelectProvince(item.name)
	case actionRegency:
		changed, snap, err = session.SelectRegency(item.name)
	case actionClearRegency:
		changed, snap, err = session.ClearRegency()
	case actionReset:
		changed, snap, err = session.Reset()
	case actionDetails:
		d, err := session.RegencyDetail(ctx, item.name)
		if err != nil {
			return err
		}
		writeInspectText(out, inspectReport{Selection: session.Snapshot(), Detail: &d})
		return nil
	case actionSearch:
		name, err := pickSearchResult(session)
		if err != nil || name == "" {
			return err
		}
		changed, snap, err = session.SelectSearchResult(name)
		if err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	if changed && snap.View != nil {
		fmt.Fprintf(out, "  %s to %.4f,%.4f at zoom %.2f\n",
			snap.View.Command.Kind, snap.View.Center.Lat, snap.View.Center.Lon, snap.View.Zoom)
	}
	return nil
}

// pickSearchResult asks for a query and lets the user choose among the
// matches. An empty name means nothing was picked.
func pickSearchResult(session *server.Session) (string, error) {
	query, err := (&promptui.Prompt{Label: "Regency name"}).Run()
	if err != nil {
		return "", err
	}
	results, err := session.Search(query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no regency matches %q", query)
	}

	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = fmt.Sprintf("%s (%s)", r.Name, r.Province)
	}
	idx, _, err := (&promptui.Select{Label: "Matches", Items: labels, Size: 12}).Run()
	if errors.Is(err, promptui.ErrInterrupt) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return results[idx].Name, nil
}

func exploreLabel(snap server.Snapshot) string {
	switch snap.State {
	case selection.ProvinceSelected:
		return snap.Province
	case selection.ProvinceAndRegencySelected:
		return snap.Province + " / " + snap.Regency
	default:
		return "Indonesia"
	}
}
