// Package main is the entry point for the Openboard workflow engine.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openboard/engine/internal/config"
	"github.com/openboard/engine/internal/domain"
	"github.com/openboard/engine/internal/ipc"
	"github.com/openboard/engine/internal/session"
	"github.com/openboard/engine/internal/store"
	"github.com/openboard/engine/internal/taskgraph"
	"github.com/openboard/engine/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "openboard",
	Short: "Openboard workflow engine",
	Long: `Openboard drives AI-assisted development sessions for the collaboration
server: it sequences sessions through goal gathering, brainstorming, rough
draft, batched execution, and cleanup, and schedules declared tasks into
dependency-respecting batches.`,
}

func main() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Resolve config path: --config flag > OPENBOARD_CONFIG env > config.json in cwd.
			path := configPath
			if path == "" {
				path = os.Getenv("OPENBOARD_CONFIG")
			}
			if path == "" {
				path = discoverConfig()
			}
			if path == "" {
				return fmt.Errorf("no config found: use --config <path>, set OPENBOARD_CONFIG, or place config.json in the working directory")
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := store.NewDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			registry, err := workflow.ForTopology(cfg.Workflow)
			if err != nil {
				return err
			}

			engine := workflow.NewEngine(db, registry)
			syncer := taskgraph.NewSyncer(db)
			locker := session.NewLocker(cfg.SyncRateLimitPerMinute)

			handler := &ipc.Handler{
				Engine:    engine,
				Syncer:    syncer,
				Locker:    locker,
				Registry:  registry,
				DB:        db,
				EventRepo: &store.EventRepo{},
				DocRepo:   &store.DocumentRepo{},
			}

			srv := ipc.NewServer(handler, cfg.ListenAddr)

			// Graceful shutdown on interrupt.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				log.Println("shutting down...")

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					log.Printf("server shutdown: %v", err)
				}
			}()

			log.Printf("openboard engine (%s workflow) listening on %s", registry.Name(), cfg.ListenAddr)

			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration JSON file")
	return cmd
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <task-file.yaml>",
		Short: "Compute and print execution batches for a task declaration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := loadTaskFile(args[0])
			if err != nil {
				return err
			}

			batches, err := taskgraph.BuildBatches(tasks)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Batch", "Task", "Depends on"})
			for _, b := range batches {
				for _, bt := range b.Tasks {
					t.AppendRow(table.Row{b.ID, bt.ID, strings.Join(bt.DependsOn, ", ")})
				}
				t.AppendSeparator()
			}
			t.Render()
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <task-file.yaml>",
		Short: "Check a task declaration file for dependency cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := loadTaskFile(args[0])
			if err != nil {
				return err
			}

			if cycle := taskgraph.DetectCycle(tasks); cycle != nil {
				return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tasks, no cycles\n", len(tasks))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "openboard %s (commit=%s, built=%s)\n", version, commit, date)
		},
	}
}

func loadTaskFile(path string) ([]domain.TaskGraphTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return taskgraph.ParseTasks(string(data))
}

// discoverConfig looks for config.json in the current working directory.
func discoverConfig() string {
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
