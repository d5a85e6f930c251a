package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/nusantaramap/internal/datasource"
	"github.com/MeKo-Tech/nusantaramap/internal/selection"
	"github.com/MeKo-Tech/nusantaramap/internal/server"
	"github.com/spf13/viper"
)

// registerViewFlags adds the viewer options shared by serve and inspect.
func registerViewFlags() {
	d := selection.DefaultOptions()
	flags := rootCmd.PersistentFlags()

	flags.String("highlight-color", d.HighlightColor, "Fill color of the selected feature")
	flags.String("base-fill-color", d.BaseFillColor, "Fill color when per-feature colors are off")
	flags.String("border-color", d.BorderColor, "Feature border color")
	flags.Bool("random-colors", d.UseRandomPerFeatureColor, "Give every feature its own pastel color")
	flags.Bool("show-search", d.ShowSearch, "Enable regency search")
	flags.Bool("show-detail-panel", d.ShowDetailPanel, "Include attributes and POIs in regency details")
	flags.Float64("province-padding", d.ProvinceZoomPadding, "Left viewport fraction kept free when fitting a province")
	flags.Float64("regency-padding", d.RegencyZoomPadding, "Viewport fraction padded on each side when fitting a search result")
	flags.Duration("fly-duration", d.FlyDuration, "Animation duration of view commands")

	mustBindPersistent("view.highlight_color", "highlight-color")
	mustBindPersistent("view.base_fill_color", "base-fill-color")
	mustBindPersistent("view.border_color", "border-color")
	mustBindPersistent("view.random_colors", "random-colors")
	mustBindPersistent("view.show_search", "show-search")
	mustBindPersistent("view.show_detail_panel", "show-detail-panel")
	mustBindPersistent("view.province_padding", "province-padding")
	mustBindPersistent("view.regency_padding", "regency-padding")
	mustBindPersistent("view.fly_duration", "fly-duration")
}

// selectionOptions reads the viewer options from viper.
func selectionOptions() (selection.Options, error) {
	opts := selection.DefaultOptions()
	opts.HighlightColor = viper.GetString("view.highlight_color")
	opts.BaseFillColor = viper.GetString("view.base_fill_color")
	opts.BorderColor = viper.GetString("view.border_color")
	opts.UseRandomPerFeatureColor = viper.GetBool("view.random_colors")
	opts.ShowSearch = viper.GetBool("view.show_search")
	opts.ShowDetailPanel = viper.GetBool("view.show_detail_panel")
	opts.ProvinceZoomPadding = viper.GetFloat64("view.province_padding")
	opts.RegencyZoomPadding = viper.GetFloat64("view.regency_padding")
	opts.FlyDuration = viper.GetDuration("view.fly_duration")

	if err := opts.Validate(); err != nil {
		return selection.Options{}, fmt.Errorf("invalid view options: %w", err)
	}
	return opts, nil
}

// newStore builds the feature store from the data.* settings.
func newStore() *datasource.Store {
	return datasource.NewStore(datasource.Config{
		ProvinceSource: viper.GetString("data.provinces"),
		RegencySource:  viper.GetString("data.regencies"),
		Seed:           viper.GetInt64("data.seed"),
		Logger:         logger,
	})
}

// attachPointsOfInterest installs the OpenStreetMap lookup on session when
// data.osm_pois is set.
func attachPointsOfInterest(session *server.Session) {
	if !viper.GetBool("data.osm_pois") {
		return
	}
	endpoint := viper.GetString("data.overpass_endpoint")
	session.SetPointsOfInterestSource(
		datasource.NewOSMPointsOfInterest(endpoint, viper.GetInt("data.osm_poi_limit"), logger))
	logger.Info("OpenStreetMap points of interest enabled", "endpoint", endpoint)
}
