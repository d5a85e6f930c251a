package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/nusantaramap/internal/server"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run a selection headlessly and print the resulting state and view",
	Long: `inspect loads both collections, applies the requested selection steps in
the order --at, --province, --regency, --search-pick, and prints the
selection, the resolved view and, for a selected regency, its details.`,
	Example: `  nusantaramap inspect --province Bali
  nusantaramap inspect --search-pick Denpasar --format json
  nusantaramap inspect --at -8.65,115.22 --format yaml`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	flags := inspectCmd.Flags()
	flags.String("at", "", "Select the regions under lat,lon")
	flags.String("province", "", "Province to click")
	flags.String("regency", "", "Regency to click")
	flags.String("search-pick", "", "Regency to pick from search results")
	flags.String("format", "text", "Output format (text, json, yaml)")
	flags.Int("viewport-width", server.DefaultViewportWidth, "Renderer width in pixels used to resolve view commands")
	flags.Int("viewport-height", server.DefaultViewportHeight, "Renderer height in pixels used to resolve view commands")

	for key, name := range map[string]string{
		"inspect.format":          "format",
		"inspect.viewport_width":  "viewport-width",
		"inspect.viewport_height": "viewport-height",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

type inspectRequest struct {
	At         *orb.Point
	Province   string
	Regency    string
	SearchPick string
}

type inspectReport struct {
	Location  *server.Location      `json:"location,omitempty"`
	Selection server.Snapshot       `json:"selection"`
	Provinces []string              `json:"visible_provinces"`
	Regencies []string              `json:"regencies"`
	Detail    *server.RegencyDetail `json:"detail,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	var req inspectRequest
	req.Province, _ = cmd.Flags().GetString("province")
	req.Regency, _ = cmd.Flags().GetString("regency")
	req.SearchPick, _ = cmd.Flags().GetString("search-pick")
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		pt, err := parseLatLon(at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		req.At = &pt
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := loadSession(ctx, viper.GetInt("inspect.viewport_width"), viper.GetInt("inspect.viewport_height"))
	if err != nil {
		return err
	}

	report, err := inspect(ctx, session, req)
	if err != nil {
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("inspect.format"), report, func(w io.Writer) {
		writeInspectText(w, report)
	})
}

// loadSession loads both collections into a session without an event hub.
// A missing regency collection is logged; the province collection is required.
func loadSession(ctx context.Context, width, height int) (*server.Session, error) {
	opts, err := selectionOptions()
	if err != nil {
		return nil, err
	}
	session, err := server.NewSession(opts, nil, width, height, logger)
	if err != nil {
		return nil, err
	}

	attachPointsOfInterest(session)

	store := newStore()
	defer store.Close()
	store.Subscribe(session)
	if err := store.LoadAll(ctx); err != nil {
		if !store.Loaded(types.KindProvince) {
			return nil, err
		}
		logger.Warn("Regencies unavailable", "error", err)
	}
	return session, nil
}

func inspect(ctx context.Context, session *server.Session, req inspectRequest) (inspectReport, error) {
	var report inspectReport

	if req.At != nil {
		loc, err := session.RegionAt(*req.At)
		if err != nil {
			return report, err
		}
		report.Location = &loc
		if _, _, err := session.SelectProvince(loc.Province); err != nil {
			return report, err
		}
		if loc.Regency != "" {
			if _, _, err := session.SelectRegency(loc.Regency); err != nil {
				return report, err
			}
		}
	}

	steps := []struct {
		name string
		fn   func(string) (bool, server.Snapshot, error)
	}{
		{req.Province, session.SelectProvince},
		{req.Regency, session.SelectRegency},
		{req.SearchPick, session.SelectSearchResult},
	}
	for _, step := range steps {
		if step.name == "" {
			continue
		}
		if _, _, err := step.fn(step.name); err != nil {
			return report, err
		}
	}

	report.Selection = session.Snapshot()
	report.Provinces, report.Regencies = session.Names()
	if report.Selection.Regency != "" {
		d, err := session.RegencyDetail(ctx, report.Selection.Regency)
		if err != nil {
			return report, err
		}
		report.Detail = &d
	}
	return report, nil
}

func writeInspectText(w io.Writer, r inspectReport) {
	if r.Location != nil {
		fmt.Fprintf(w, "Location:   %.4f,%.4f\n", r.Location.Lat, r.Location.Lon)
	}
	sel := r.Selection
	fmt.Fprintf(w, "State:      %s\n", sel.State)
	fmt.Fprintf(w, "Province:   %s\n", orDash(sel.Province))
	fmt.Fprintf(w, "Regency:    %s\n", orDash(sel.Regency))
	if sel.View != nil {
		fmt.Fprintf(w, "View:       %s to %.4f,%.4f at zoom %.2f\n",
			sel.View.Command.Kind, sel.View.Center.Lat, sel.View.Center.Lon, sel.View.Zoom)
	}
	fmt.Fprintf(w, "Visible:    %d province(s)\n", len(r.Provinces))
	if len(r.Regencies) > 0 {
		fmt.Fprintf(w, "Regencies:  %s\n", strings.Join(r.Regencies, ", "))
	}

	if d := r.Detail; d != nil {
		fmt.Fprintf(w, "Fill:       %s\n", d.Style.FillColor)
		if d.Attributes != nil {
			if d.Attributes.District != "" {
				fmt.Fprintf(w, "District:   %s\n", d.Attributes.District)
			}
			if d.Attributes.AreaWH > 0 {
				fmt.Fprintf(w, "Area (WH):  %.2f\n", d.Attributes.AreaWH)
			}
		}
		for _, poi := range d.PointsOfInterest {
			fmt.Fprintf(w, "POI:        %s\n", poi.Name)
		}
	}
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, errors.New("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, errors.New("coordinates out of range")
	}
	return orb.Point{lon, lat}, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
