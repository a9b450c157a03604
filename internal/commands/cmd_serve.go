package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/holdpoint/internal/core/browser"
	"github.com/colonyops/holdpoint/internal/core/eventbus"
	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/instance"
	"github.com/colonyops/holdpoint/internal/core/logging"
	"github.com/colonyops/holdpoint/internal/core/review"
	"github.com/colonyops/holdpoint/internal/server"
	"github.com/colonyops/holdpoint/pkg/executil"
)

type ServeCmd struct {
	flags   *Flags
	version string

	// flags
	port int
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, version string) *ServeCmd {
	return &ServeCmd{flags: flags, version: version}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Start the review server",
		UsageText: "holdpoint serve [--port]",
		Description: `Starts the HTTP server that hosts review sessions and the browser review page.

Only one server runs per data directory. Agents create sessions against it with
'holdpoint request' or the HTTP API directly.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Usage:       "port to listen on (overrides config)",
				Destination: &cmd.port,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	port := cfg.Server.Port
	if cmd.port != 0 {
		port = cmd.port
	}

	ln, port, err := listen(cfg.Server.Host, port, cfg.Server.PortAttempts)
	if err != nil {
		return err
	}

	lock, err := instance.Acquire(cfg.DataDir, instance.Info{
		PID:       os.Getpid(),
		Port:      port,
		Version:   cmd.version,
		StartedAt: time.Now(),
	})
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("release instance lock")
		}
	}()

	var (
		registry = review.NewRegistry()
		bus      = eventbus.New(cfg.Server.EventBuffer, logging.Component("eventbus"))
		service  = review.NewService(registry, eventbus.NewServiceEvents(bus), logging.Component("review"), cfg.Review.SessionTimeout.Std())
		exec     = &executil.RealExecutor{}
		gitExec  = git.NewExecutor(cfg.GitPath, exec)
	)

	var opener *browser.Opener
	if cfg.Server.OpenBrowserEnabled() {
		opener = browser.NewOpener(cfg.OpenCommand, exec, logging.Component("browser"))
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", port))
	srv := server.New(addr, server.Options{
		Service:   service,
		Extractor: git.NewExtractor(gitExec, logging.Component("extract")),
		Opener:    opener,
		Bus:       bus,
		Logger:    logging.Component("server"),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.Root().Writer, "holdpoint listening on http://%s\n", addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bus.Start(gctx)
		return nil
	})
	g.Go(func() error {
		review.Sweep(gctx, registry, cfg.Review.CleanupInterval.Std(), cfg.Review.CleanupMaxAge.Std(), logging.Component("sweep"))
		return nil
	})
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()

		// Unblock suspended waiters before stopping the listener so they
		// receive a cancellation instead of a dropped connection.
		registry.Clear()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// listen binds the first free port starting at port, trying up to attempts
// consecutive ports.
func listen(host string, port, attempts int) (net.Listener, int, error) {
	for i := range attempts {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, port + i, nil
		}
		log.Debug().Str("addr", addr).Err(err).Msg("port unavailable")
	}
	return nil, 0, fmt.Errorf("no free port in range %d-%d", port, port+attempts-1)
}
