package cmd

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/psykit/psykit/cmd/common"
	"github.com/psykit/psykit/internal/cache"
	"github.com/psykit/psykit/internal/session"
	"github.com/psykit/psykit/pkg/logger"
	"github.com/psykit/psykit/pkg/psylib"
)

var playerFlags = []cli.Flag{
	cli.Float64Flag{
		Name:  "fps, f",
		Usage: "frame rate the scheduler ticks at",
		Value: psylib.DefaultFrameRate,
	},
	cli.StringFlag{
		Name:  "base-url, b",
		Usage: "base `URL` scheme-less resource paths resolve against",
	},
	cli.StringFlag{
		Name:  "proxy-route",
		Usage: "proxy `route` cross-origin resources are rewritten through",
	},
	cli.StringFlag{
		Name:  "proxy, x",
		Usage: "http(s) or socks5 proxy `URL` for resource fetches",
	},
	cli.StringFlag{
		Name:  "cache, c",
		Usage: "`path` of the sqlite asset cache (empty disables caching)",
	},
	cli.StringFlag{
		Name:  "survey-server",
		Usage: "`address` of the survey model server",
	},
	cli.StringFlag{
		Name:  "log-file",
		Usage: "append player logs to `path` as well as the console",
	},
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: "suppress player logging",
	},
}

var (
	runFlags   = playerFlags
	fetchFlags = playerFlags
	serveFlags = append([]cli.Flag{
		cli.IntFlag{
			Name:  "port, p",
			Usage: "TCP `port` the observer endpoint listens on",
			Value: 3407,
		},
		cli.StringFlag{
			Name:  "secret, s",
			Usage: "bearer `token` observers must present",
		},
	}, playerFlags...)
)

// playerEnv is the wiring every player command shares: manifest,
// pipeline, and logging. log carries user-facing messages; l is the
// plain logger the pipeline components write diagnostics to.
type playerEnv struct {
	manifest *session.Manifest
	manager  *psylib.ResourceManager
	handlers *psylib.Handlers
	log      logger.Logger
	l        *log.Logger
	closers  []io.Closer
}

func (e *playerEnv) Close() {
	for _, c := range e.closers {
		c.Close()
	}
	e.log.Close()
}

// buildEnv assembles the pipeline from the command line. The returned
// env's handlers pointer is live: commands may repoint its fields
// before any download starts.
func buildEnv(ctx *cli.Context) (*playerEnv, error) {
	manifestPath := ctx.Args().First()
	if manifestPath == "" {
		return nil, fmt.Errorf("no manifest path given")
	}

	l := log.Default()
	if ctx.Bool("quiet") {
		l = log.New(io.Discard, "", 0)
	}

	fs := afero.NewOsFs()
	manifest, err := session.LoadManifest(fs, manifestPath)
	if err != nil {
		return nil, err
	}

	client, err := psylib.NewHTTPClientWithProxy(ctx.String("proxy"))
	if err != nil {
		return nil, err
	}

	env := &playerEnv{
		manifest: manifest,
		handlers: &psylib.Handlers{},
		l:        l,
	}
	if env.log, err = buildLogger(ctx, env); err != nil {
		return nil, err
	}

	var assetCache psylib.AssetCache
	if path := ctx.String("cache"); path != "" {
		c, err := cache.Open(path)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, c)
		assetCache = c
	}

	var survey psylib.SurveyClient
	if addr := ctx.String("survey-server"); addr != "" {
		sc, err := psylib.DialSurveyServer(addr)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, sc)
		survey = sc
	}

	env.manager = psylib.NewResourceManager(&psylib.ResourceManagerOpts{
		Handlers: env.handlers,
		Resolver: &psylib.PathResolver{
			TrustedHost: trustedHost(ctx.String("base-url")),
			ProxyRoute:  ctx.String("proxy-route"),
			BaseURL:     ctx.String("base-url"),
		},
		Client: client,
		FS:     fs,
		Survey: survey,
		Cache:  assetCache,
		Logger: l,
	})
	return env, nil
}

// buildLogger assembles the user-facing logger: console unless quiet,
// fanned out to a session log file when requested.
func buildLogger(ctx *cli.Context, env *playerEnv) (logger.Logger, error) {
	var sinks []logger.Logger
	if !ctx.Bool("quiet") {
		sinks = append(sinks, logger.NewStandardLogger(log.New(os.Stdout, "", log.LstdFlags)))
	}
	if path := ctx.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		env.closers = append(env.closers, f)
		sinks = append(sinks, logger.NewStandardLogger(log.New(f, "", log.LstdFlags)))
	}
	if len(sinks) == 0 {
		return logger.NewNopLogger(), nil
	}
	return logger.NewMultiLogger(sinks...), nil
}

// trustedHost derives the same-origin host from the base URL.
func trustedHost(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// frameClock builds the scheduler clock from the fps flag. The caller
// owns the returned stop function.
func frameClock(ctx *cli.Context) (psylib.FrameClock, func()) {
	fps := ctx.Float64("fps")
	if fps <= 0 {
		fps = psylib.DefaultFrameRate
	}
	tc := psylib.NewTickerClock(fps)
	return tc, tc.Stop
}

func printPlayerErr(ctx *cli.Context, action string, err error) error {
	common.PrintRuntimeErr(ctx, ctx.Command.Name, action, err)
	return nil
}
