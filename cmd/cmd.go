package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/psykit/psykit/cmd/common"
)

// BuildArgs carries build-time identity injected by the linker.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// version and commit back the observer endpoint's system.getVersion.
var (
	version string
	commit  string
)

// Execute runs the CLI with the given arguments.
func Execute(args []string, bArgs BuildArgs) error {
	version, commit = bArgs.Version, bArgs.Commit
	common.VersionCmdStr = fmt.Sprintf(
		"psykit %s-%s (%s/%s)\nbuilt on %s from commit %s",
		bArgs.Version, bArgs.BuildType,
		runtime.GOOS, runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	app := cli.App{
		Name:                  "psykit",
		HelpName:              "psykit",
		Usage:                 "A frame-synchronized behavioral experiment player.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "psykit <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "run",
				Aliases:                []string{"r"},
				Usage:                  "play a session manifest",
				Action:                 run,
				Flags:                  runFlags,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				UseShortOptionHandling: true,
				Description:            RunDescription,
			},
			{
				Name:               "fetch",
				Aliases:            []string{"f"},
				Usage:              "download a manifest's resources without running it",
				Action:             fetch,
				Flags:              fetchFlags,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        FetchDescription,
			},
			{
				Name:               "serve",
				Usage:              "play a session with an observer endpoint",
				Action:             serve,
				Flags:              serveFlags,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ServeDescription,
			},
			{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "print version information",
				Action:  common.GetVersion,
			},
			{
				Name:      "help",
				Aliases:   []string{"h"},
				Usage:     "show help for any command",
				ArgsUsage: "[command]",
				Action:    common.Help,
			},
		},
		Action:          common.Help,
		HideHelp:        true,
		HideVersion:     true,
		CommandNotFound: commandNotFound,
	}
	return app.Run(args)
}

func commandNotFound(ctx *cli.Context, cmd string) {
	fmt.Printf("%s: '%s' is not a valid command\n", ctx.App.HelpName, cmd)
	fmt.Printf("Use \"%s help\" to see available commands.\n", ctx.App.HelpName)
}
