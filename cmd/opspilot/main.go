// Package main is the entry point for the opspilot CLI. Opspilot
// interprets operator commands through AI backends, architects complex
// requests into step plans, and executes them on the host.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/executor"
	"github.com/opspilot/opspilot/internal/history"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/orchestrator"
	"github.com/opspilot/opspilot/internal/plugins"
	"github.com/opspilot/opspilot/internal/server"
	"github.com/opspilot/opspilot/internal/shell"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "opspilot",
		Short: "Opspilot - AI-assisted command interpretation and execution",
		Long: `Opspilot turns operator requests into shell commands and plans.

Questions  (_how do I...?)   are echoed back after marker stripping.
Simple requests              are interpreted by the default AI provider.
Complex requests (>4 words)  are architected into a step plan and executed.

Start the HTTP server:   opspilot serve
One-shot processing:     opspilot run "restart the nginx service now"
Configuration:           opspilot config show`,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.opspilot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(pluginsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.Level = logging.LevelDebug
	}

	if loaded, err := loadConfig(); err == nil {
		if loaded.Logging.File != "" {
			cfg.FilePath = loaded.Logging.File
		}
		if !verbose {
			cfg.Level = logging.ParseLevel(loaded.Logging.Level)
		}
	}

	log = logging.New(cfg)
	logging.SetGlobal(log)
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// buildStack assembles the orchestrator and its collaborators from
// configuration. The returned cleanup closes the history store.
func buildStack(cfg *config.Config) (*orchestrator.Orchestrator, *llm.Gateway, *plugins.Registry, *history.Store, func(), error) {
	gateway, err := llm.NewGateway(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("initialize providers: %w", err)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.DBPath)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("open history: %w", err)
		}
	}

	registry := plugins.NewRegistryFromConfig(cfg.Plugins, nil)

	runnerOpts := []shell.Option{}
	if cfg.Executor.Shell != "" {
		runnerOpts = append(runnerOpts, shell.WithShell(cfg.Executor.Shell))
	}
	if cfg.Executor.WorkingDir != "" {
		runnerOpts = append(runnerOpts, shell.WithWorkingDir(cfg.Executor.WorkingDir))
	}
	if cfg.Executor.MaxOutputSize > 0 {
		runnerOpts = append(runnerOpts, shell.WithMaxOutputSize(cfg.Executor.MaxOutputSize))
	}
	runner := shell.NewRunner(runnerOpts...)

	planner := architect.New(cfg, gateway)
	exec := executor.New(runner, cfg.Executor.ContinueOnError)

	var recorder orchestrator.Recorder
	if store != nil {
		recorder = store
	}
	orch := orchestrator.New(gateway, planner, exec, runner, orchestrator.Options{
		FallbackEnabled: cfg.LLM.FallbackEnabled,
		HelperPath:      cfg.LLM.FallbackHelper,
		Helper:          orchestrator.HeuristicHelper,
		CacheSize:       cfg.LLM.InterpretationCacheSize,
		History:         recorder,
	})

	cleanup := func() {
		registry.Shutdown()
		if store != nil {
			store.Close()
		}
	}
	return orch, gateway, registry, store, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			orch, gateway, registry, store, cleanup, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			configPath := cfgPath
			if configPath == "" {
				home, _ := os.UserHomeDir()
				configPath = home + "/.opspilot/config.yaml"
			}

			srv := server.New(server.Options{
				Config:     config.NewHandle(cfg),
				ConfigPath: configPath,
				Orch:       orch,
				Gateway:    gateway,
				Registry:   registry,
				Store:      store,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("Received %s, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
}

func runCmd() *cobra.Command {
	var mcps bool

	cmd := &cobra.Command{
		Use:   "run <command>",
		Short: "Process a single command and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			orch, _, _, _, cleanup, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			command := args[0]
			for _, a := range args[1:] {
				command += " " + a
			}

			env := orch.ProcessCommand(cmd.Context(), orchestrator.Request{Command: command, MCPS: mcps})

			out, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if !env.Success {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mcps, "mcps", false, "expand the interpretation into steps and execute each line")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				if err := cfg.SaveToPath(cfgPath); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
				return nil
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Println("Wrote ~/.opspilot/config.yaml")
			return nil
		},
	})

	return cmd
}

func pluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage extension modules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured extension modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry := plugins.NewRegistryFromConfig(cfg.Plugins, nil)
			defer registry.Shutdown()

			infos := registry.List()
			if len(infos) == 0 {
				fmt.Println("No extension modules configured.")
				return nil
			}
			for _, info := range infos {
				state := "usable"
				if !info.Usable {
					state = "unusable (" + info.Reason + ")"
				}
				fmt.Printf("%-20s %s\n", info.Name, state)
			}
			return nil
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opspilot %s\n", version)
		},
	}
}
