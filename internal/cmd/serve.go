package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/pipeline"
	"github.com/MeKo-Tech/nusantaramap/internal/search"
	"github.com/MeKo-Tech/nusantaramap/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the viewer API, event stream and optional basemap",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("static-dir", "", "Directory with a demo client served at /")
	serveCmd.Flags().String("basemap", "", "MBTiles archive served at /basemap/{z}/{x}/{y}.png")
	serveCmd.Flags().Bool("live-basemap", false, "Render watercolor province tiles on demand at /live/{z}/{x}/{y}.png")
	serveCmd.Flags().Int("live-workers", 2, "Maximum concurrent on-demand tile renders")
	serveCmd.Flags().Int("live-cache", 512, "Rendered tiles kept in memory (0 disables)")
	serveCmd.Flags().Duration("live-timeout", 30*time.Second, "Timeout for one on-demand tile render")
	serveCmd.Flags().Int64("live-seed", 1337, "Texture seed for on-demand tiles")
	serveCmd.Flags().String("geoip", "", "GeoIP2/GeoLite2 City database enabling /api/locate by client address")
	serveCmd.Flags().String("cache-control", "public, max-age=86400", "Cache-Control header for basemap tiles")
	serveCmd.Flags().Bool("allow-all-origins", false, "Allow every CORS origin")
	serveCmd.Flags().Int("viewport-width", server.DefaultViewportWidth, "Renderer width in pixels used to resolve view commands")
	serveCmd.Flags().Int("viewport-height", server.DefaultViewportHeight, "Renderer height in pixels used to resolve view commands")
	serveCmd.Flags().Duration("search-delay", search.DefaultDelay, "Debounce delay for WebSocket search")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.static_dir", "static-dir")
	mustBind("serve.basemap", "basemap")
	mustBind("serve.geoip", "geoip")
	mustBind("serve.live.enabled", "live-basemap")
	mustBind("serve.live.workers", "live-workers")
	mustBind("serve.live.cache", "live-cache")
	mustBind("serve.live.timeout", "live-timeout")
	mustBind("serve.live.seed", "live-seed")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.allow_all_origins", "allow-all-origins")
	mustBind("serve.viewport_width", "viewport-width")
	mustBind("serve.viewport_height", "viewport-height")
	mustBind("serve.search_delay", "search-delay")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	opts, err := selectionOptions()
	if err != nil {
		return err
	}

	hub := server.NewHub(logger)
	session, err := server.NewSession(opts, hub,
		viper.GetInt("serve.viewport_width"), viper.GetInt("serve.viewport_height"), logger)
	if err != nil {
		return err
	}

	attachPointsOfInterest(session)

	var live *server.LiveBasemap
	if viper.GetBool("serve.live.enabled") {
		live, err = server.NewLiveBasemap(server.LiveBasemapConfig{
			Style:         pipeline.DefaultStyle(viper.GetInt64("serve.live.seed")),
			CacheControl:  viper.GetString("serve.cache_control"),
			MaxConcurrent: viper.GetInt("serve.live.workers"),
			Timeout:       viper.GetDuration("serve.live.timeout"),
			CacheEntries:  viper.GetInt("serve.live.cache"),
		}, logger)
		if err != nil {
			return fmt.Errorf("live basemap: %w", err)
		}
	}

	srv, err := server.New(server.Config{
		Addr:            viper.GetString("serve.addr"),
		StaticDir:       viper.GetString("serve.static_dir"),
		BasemapPath:     viper.GetString("serve.basemap"),
		CacheControl:    viper.GetString("serve.cache_control"),
		GeoIPPath:       viper.GetString("serve.geoip"),
		Live:            live,
		SearchDelay:     viper.GetDuration("serve.search_delay"),
		AllowAllOrigins: viper.GetBool("serve.allow_all_origins"),
	}, session, hub, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore()
	store.Subscribe(session)
	if live != nil {
		store.Subscribe(live)
	}
	defer store.Close()

	// The viewer is usable while the collections load; each kind shows up
	// when it arrives, and a failed kind stays empty.
	go func() {
		if err := store.LoadAll(ctx); err != nil {
			logger.Error("Data load incomplete", "error", err)
		}
	}()

	return srv.ListenAndServe(ctx)
}
