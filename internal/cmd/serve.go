package cmd

import (
	"net/http"
	"runtime"
	"time"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve grain previews and the preset table over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent grain generations (default: number of CPUs)")
	serveCmd.Flags().Duration("generation-timeout", 30*time.Second, "Timeout per grain generation")
	serveCmd.Flags().Int("max-dimension", server.DefaultMaxDimension, "Largest accepted preview width or height")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served previews")
	serveCmd.Flags().Bool("cameras", true, "Resolve ?camera= against --camera-db")

	mustBind(serveCmd, "serve.addr", "addr")
	mustBind(serveCmd, "serve.max_concurrent_generations", "max-concurrent-generations")
	mustBind(serveCmd, "serve.generation_timeout", "generation-timeout")
	mustBind(serveCmd, "serve.max_dimension", "max-dimension")
	mustBind(serveCmd, "serve.cache_control", "cache-control")
	mustBind(serveCmd, "serve.cameras", "cameras")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	maxConc := viper.GetInt("serve.max_concurrent_generations")

	cfg := server.GrainServerConfig{
		CacheControl:             viper.GetString("serve.cache_control"),
		MaxConcurrentGenerations: maxConc,
		MaxDimension:             viper.GetInt("serve.max_dimension"),
		GenerationTimeout:        viper.GetDuration("serve.generation_timeout"),
	}

	if viper.GetBool("serve.cameras") {
		store, err := openCameraStore()
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.Cameras = store
	}

	mux := newServeMux(server.NewGrainServer(cfg, logger))

	logger.Info("grain server listening",
		"addr", addr,
		"max_concurrent_generations", maxConc,
		"camera_db", cameraDBPath(cfg.Cameras),
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

func newServeMux(gs *server.GrainServer) *http.ServeMux {
	mux := gs.Routes()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func cameraDBPath(store *camera.Store) string {
	if store == nil {
		return ""
	}
	return store.Path()
}
