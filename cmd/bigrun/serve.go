package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/bigrun/pkg/api"
	"github.com/lemonberrylabs/bigrun/pkg/config"
	"github.com/lemonberrylabs/bigrun/pkg/schedule"
	"github.com/lemonberrylabs/bigrun/pkg/store"
	"github.com/lemonberrylabs/bigrun/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scripts over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	f := serveCmd.Flags()
	f.String("config", "", "Config file (default bigrun.yaml when present)")
	f.String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	f.Int("port", 0, "HTTP server port (default 8787, env PORT)")
	f.String("scripts-dir", "", "Directory of .big files to deploy (env BIGRUN_SCRIPTS_DIR)")
	f.Bool("watch", false, "Redeploy scripts when files in --scripts-dir change")
	f.Bool("debug", false, "Trace script execution")
	f.Bool("heal", false, "Close loop blocks that are missing a keep")
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("scripts-dir") {
		cfg.ScriptsDir, _ = f.GetString("scripts-dir")
	}
	if f.Changed("watch") {
		cfg.Watch, _ = f.GetBool("watch")
	}
	if f.Changed("debug") {
		cfg.Debug, _ = f.GetBool("debug")
	}
	if f.Changed("heal") {
		cfg.Heal, _ = f.GetBool("heal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s := store.New()
	server := api.New(s, api.Options{
		Dir:     cfg.ScriptsDir,
		DataDir: cfg.DataDir,
		Timeout: cfg.ExecutionTimeout(),
		Debug:   cfg.Debug,
		Heal:    cfg.Heal,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ScriptsDir != "" {
		if err := server.LoadDir(cfg.ScriptsDir); err != nil {
			log.Printf("Warning: %v", err)
		}
		if cfg.Watch {
			log.Printf("Watching scripts directory: %s", cfg.ScriptsDir)
			if err := server.WatchDir(ctx, cfg.ScriptsDir); err != nil {
				log.Printf("Warning: failed to watch scripts directory: %v", err)
			}
		}
	}

	web.New(s).Register(server.App())

	sched, err := schedule.New(server, cfg.Schedules)
	if err != nil {
		return err
	}
	sched.Start()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down bigrun...")
		cancel()
		if err := sched.Shutdown(); err != nil {
			log.Printf("Error stopping scheduler: %v", err)
		}
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("bigrun listening on %s", cfg.Addr())
	if cfg.ScriptsDir == "" {
		log.Printf("API-only mode (no --scripts-dir specified)")
	}
	return server.Listen(cfg.Addr())
}
