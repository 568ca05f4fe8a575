package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/message"
	"github.com/sweetpotato0/streamchat/prompt"
	"github.com/sweetpotato0/streamchat/tokenizer"
)

func countTokens(ctx context.Context, cfg *config.Config, args []string, in io.Reader, out io.Writer) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		raw, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		text = string(raw)
	}
	if asChat {
		text = prompt.Format([]*message.Message{message.User(text)})
	}

	load, err := tokenizer.NewLoader(ctx, cfg.Tokenizer)
	if err != nil {
		return err
	}
	n, err := tokenizer.NewCached(load).CountTokens(text)
	if err != nil {
		return err
	}

	status := "ok"
	if n >= cfg.Chat.TokenCeiling {
		status = "too long"
	}
	_, err = fmt.Fprintf(out, "%d tokens (ceiling %d, %s)\n", n, cfg.Chat.TokenCeiling, status)
	return err
}
