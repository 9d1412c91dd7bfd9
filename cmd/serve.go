package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/civic/internal/api"
	"github.com/joescharf/civic/internal/auth"
	"github.com/joescharf/civic/internal/daemon"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the civic HTTP API server in the foreground.

Requests authenticate with HTTP Basic credentials (email and password).
Use 'civic serve start' to run it in the background instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().String("addr", ":8080", "address to listen on")
	_ = viper.BindPFlag("server.addr", serveCmd.PersistentFlags().Lookup("addr"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "civic-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "civic-serve.log")
}

// newHTTPServer wires the API handler for addr.
func newHTTPServer(a *app, addr string) *http.Server {
	srv := api.NewServer(a.issues, a.accounts, auth.NewAuthenticator(a.store, a.hasher), a.suggester, a.metrics, a.logger)
	return &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	addr := viper.GetString("server.addr")
	httpSrv := newHTTPServer(a, addr)

	pf := pidFile()
	if err := pf.Write(daemon.Record{Addr: addr, LogPath: serveLogPath()}); err != nil {
		a.logger.Warn("could not write PID file", "path", pf.Path, "error", err)
	}
	defer func() { _ = pf.Remove() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("api server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func serveStartRun() error {
	pf := pidFile()
	if rec, running := pf.Running(); running {
		return fmt.Errorf("server already running (pid %d, addr %s)", rec.PID, rec.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	addr := viper.GetString("server.addr")
	args := []string{"serve", "--addr", addr}
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s %v", exe, args)
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("API server started (pid %d) on %s", child.Process.Pid, addr)
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	rec, running := pf.Running()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", rec.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	for range 50 {
		if _, alive := pf.Running(); !alive {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if _, alive := pf.Running(); alive {
		ui.Warning("Server did not exit in time; killing pid %d", rec.PID)
		_ = pf.Signal(sigKILL())
	}
	_ = pf.Remove()

	ui.Success("API server stopped (pid %d)", rec.PID)
	return nil
}

func serveStatusRun() error {
	rec, running := pidFile().Running()
	if !running {
		ui.Info("API server is not running")
		return nil
	}
	ui.Success("API server running (pid %d) on %s since %s",
		rec.PID, rec.Addr, rec.StartedAt.Local().Format(time.DateTime))
	return nil
}
