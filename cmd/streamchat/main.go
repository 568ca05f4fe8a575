package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

var (
	configPath   string
	addr         string
	providerName string
	token        string
	logLevel     string
	preload      bool
	chatModel    string
	asChat       bool
)

var configFlag = &cli.StringFlag{
	Name:        "config",
	Usage:       "Path to a YAML config file",
	Aliases:     []string{"c"},
	Destination: &configPath,
	EnvVars:     []string{"STREAMCHAT_CONFIG"},
}

var providerFlag = &cli.StringFlag{
	Name:        "provider",
	Usage:       "Inference provider: replicate, openai, claude or gemini",
	Destination: &providerName,
}

var tokenFlag = &cli.StringFlag{
	Name:        "token",
	Usage:       "Provider API token. Falls back to the provider's environment variable",
	Destination: &token,
}

var logLevelFlag = &cli.StringFlag{
	Name:        "log-level",
	Usage:       "debug, info, warn or error",
	Destination: &logLevel,
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the chat page",
	Flags: []cli.Flag{
		configFlag,
		providerFlag,
		tokenFlag,
		logLevelFlag,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Aliases:     []string{"a"},
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "preload",
			Usage:       "Load the tokenizer at startup instead of on the first message",
			Destination: &preload,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(ctx.Context, cfg)
	},
}

var chatCommand = &cli.Command{
	Name:  "chat",
	Usage: "Chat from the terminal",
	Description: `Reads one message per line from stdin and streams each reply to stdout.
				Lines starting with / are commands: /reset clears the history, /model NAME switches model,
				/temperature X and /top_p X change sampling, /quit exits.`,
	Flags: []cli.Flag{
		configFlag,
		providerFlag,
		tokenFlag,
		logLevelFlag,
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Model name from the catalog",
			Aliases:     []string{"m"},
			Destination: &chatModel,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return chat(ctx.Context, cfg, os.Stdin, os.Stdout)
	},
}

var tokensCommand = &cli.Command{
	Name:      "tokens",
	Usage:     "Count the tokens of a text with the configured tokenizer",
	ArgsUsage: "[text]  (read from stdin when omitted)",
	Flags: []cli.Flag{
		configFlag,
		logLevelFlag,
		&cli.BoolFlag{
			Name:        "chat",
			Usage:       "Count the text as a one-message chat prompt",
			Destination: &asChat,
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return countTokens(ctx.Context, cfg, ctx.Args().Slice(), os.Stdin, ctx.App.Writer)
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "streamchat",
		Usage:    "Chat with hosted language models, streamed",
		Version:  version,
		Commands: []*cli.Command{serveCommand, chatCommand, tokensCommand},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
