package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/urfave/cli"

	"github.com/psykit/psykit/cmd/common"
	"github.com/psykit/psykit/internal/session"
)

func run(ctx *cli.Context) error {
	env, err := buildEnv(ctx)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	defer env.Close()

	rctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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

	sched, err := ses.Build(rctx)
	if err != nil {
		return printPlayerErr(ctx, "build", err)
	}

	env.log.Info("running %q: %d block(s), %d resource(s)",
		env.manifest.Name, len(env.manifest.Blocks), len(env.manifest.Resources))
	if err = sched.Start(rctx); err != nil {
		return printPlayerErr(ctx, "run", err)
	}
	env.log.Info("session %q finished", env.manifest.Name)
	return nil
}
