package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli"

	"github.com/psykit/psykit/cmd/common"
	"github.com/psykit/psykit/internal/server"
	"github.com/psykit/psykit/internal/session"
)

// serve runs the session with the observer endpoint attached, so
// external tools can watch resource state and download events live.
func serve(ctx *cli.Context) error {
	env, err := buildEnv(ctx)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	defer env.Close()

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	es := server.NewEventServer(&server.Config{
		Secret:  ctx.String("secret"),
		Version: version,
		Commit:  commit,
	}, env.manager, env.l)
	// The manager holds this pointer, so repointing its fields routes
	// pipeline events to connected observers from here on.
	*env.handlers = *es.BindHandlers(nil)

	addr := fmt.Sprintf(":%d", ctx.Int("port"))
	srv := &http.Server{Addr: addr, Handler: es.Handler()}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	env.log.Info("observer endpoint on %s/events/ws", addr)

	clock, stopClock := frameClock(ctx)
	defer stopClock()

	ses, err := session.New(env.manifest, &session.Opts{
		Manager: env.manager,
		Clock:   clock,
		Logger:  env.l,
	})
	if err != nil {
		return printPlayerErr(ctx, "session", err)
	}
	sched, err := ses.Build(sctx)
	if err != nil {
		return printPlayerErr(ctx, "build", err)
	}

	runErr := sched.Start(sctx)
	select {
	case err = <-errc:
		return printPlayerErr(ctx, "serve", err)
	default:
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)

	if runErr != nil {
		return printPlayerErr(ctx, "run", runErr)
	}
	env.log.Info("session %q finished", env.manifest.Name)
	return nil
}
