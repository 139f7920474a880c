package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"

	"github.com/psykit/psykit/cmd/common"
	"github.com/psykit/psykit/pkg/psylib"
)

// fetch downloads every manifest resource up front, without running the
// session, so a later run starts from a warm cache.
func fetch(ctx *cli.Context) error {
	env, err := buildEnv(ctx)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	defer env.Close()

	fctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	toDownload, err := env.manager.RegisterResources(env.manifest.Resources...)
	if err != nil {
		return printPlayerErr(ctx, "register", err)
	}
	if len(toDownload) == 0 {
		for _, rec := range env.manager.Snapshot() {
			if rec.Status == psylib.StatusRegistered {
				toDownload = append(toDownload, rec.Name)
			}
		}
	}
	if len(toDownload) == 0 {
		env.log.Info("manifest %q has no resources to fetch", env.manifest.Name)
		return nil
	}

	p := mpb.New(mpb.WithRefreshRate(100 * time.Millisecond))
	bar := common.InitBatchBar(p, env.manifest.Name+": ", int64(len(toDownload)))

	done := make(chan error, 1)
	*env.handlers = psylib.Handlers{
		DownloadingResourcesHandler: func(count int) {},
		DownloadingResourceHandler: func(name string) {
			env.log.Info("fetching %s", name)
		},
		ResourceDownloadedHandler: func(name string, completed int) {
			bar.Increment()
		},
		DownloadCompletedHandler: func(count int) {
			done <- nil
		},
		ErrorHandler: func(name string, err error) {
			bar.Abort(false)
			select {
			case done <- err:
			default:
			}
		},
	}

	if err = env.manager.DownloadResources(fctx, toDownload...); err != nil {
		return printPlayerErr(ctx, "fetch", err)
	}

	select {
	case err = <-done:
	case <-fctx.Done():
		err = fctx.Err()
	}
	p.Wait()
	if err != nil {
		return printPlayerErr(ctx, "fetch", err)
	}
	env.log.Info("fetched %d resource(s)", len(toDownload))
	return nil
}
