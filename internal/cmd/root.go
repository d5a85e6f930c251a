package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/datasource"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nusantaramap",
	Short: "An interactive viewer backend for Indonesia's provinces and regencies",
	Long: `nusantaramap loads the province and regency boundaries of Indonesia,
assigns every region a stable pastel color, and drives a map viewer through
a province -> regency drill-down with search.

The map widget itself runs elsewhere: serve exposes the selection state,
styled GeoJSON and view commands over HTTP and a WebSocket stream.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("provinces", "data/province.json", "Province GeoJSON (file path or http(s) URL)")
	flags.String("regencies", "data/regency.json", "Regency GeoJSON (file path or http(s) URL)")
	flags.Int64("seed", 0, "Color seed (0 picks one per run)")
	flags.Bool("osm-pois", false, "Look up OpenStreetMap places for regencies without points of interest")
	flags.String("overpass-endpoint", datasource.DefaultOverpassEndpoint, "Overpass API interpreter URL")
	flags.Int("osm-poi-limit", 10, "Maximum OpenStreetMap places per regency")

	mustBindPersistent("verbose", "verbose")
	mustBindPersistent("log_format", "log-format")
	mustBindPersistent("data.provinces", "provinces")
	mustBindPersistent("data.regencies", "regencies")
	mustBindPersistent("data.seed", "seed")
	mustBindPersistent("data.osm_pois", "osm-pois")
	mustBindPersistent("data.overpass_endpoint", "overpass-endpoint")
	mustBindPersistent("data.osm_poi_limit", "osm-poi-limit")

	registerViewFlags()
}

func mustBindPersistent(key, name string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
	}
}

func initConfig() {
	// NUSANTARAMAP_* variables may come from a local .env file.
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NUSANTARAMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// initLogging installs the process-wide slog logger from --verbose and --log-format.
func initLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(viper.GetString("log_format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}
