package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/sweetpotato0/streamchat/config"
	apperrors "github.com/sweetpotato0/streamchat/errors"
	"github.com/sweetpotato0/streamchat/pkg/logging"
	"github.com/sweetpotato0/streamchat/session"
)

func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func chat(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	// Replies go to out; keep log lines off it.
	logging.SetLogger(logging.NewWriter(os.Stderr, cfg.Log.Format, cfg.Log.Level))

	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	if err := c.backend.CredentialRule().Check(cfg.Provider.Token); err != nil {
		return fmt.Errorf("set %s or pass --token: %w", cfg.TokenEnv(), err)
	}

	params := defaultParams(cfg, c.catalog)
	if chatModel != "" {
		if !c.catalog.Has(chatModel) {
			return fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, chatModel)
		}
		params.Model = chatModel
	}
	sess := session.New("terminal", cfg.Chat.SeedMessage, params)
	sess.SetCredential(cfg.Provider.Token)

	prompt := interactive(in)
	fmt.Fprintf(out, "assistant> %s\n", cfg.Chat.SeedMessage)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if prompt {
			fmt.Fprint(out, "you> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := command(ctx, sess, c, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		fmt.Fprint(out, "assistant> ")
		_, err := c.generator.Reply(ctx, sess, line, func(frag string) error {
			_, err := io.WriteString(out, frag)
			return err
		})
		fmt.Fprintln(out)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrPromptTooLong):
			fmt.Fprintf(out, "error: %v\nType /reset to clear the history.\n", err)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			fmt.Fprintf(out, "error: %v\nType /retry to try again.\n", err)
		}
	}
}

// command runs a slash command and reports whether the session should end.
func command(ctx context.Context, sess *session.Session, c *components, line string, out io.Writer) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	params := sess.Params()

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/reset":
		sess.Conversation().Reset()
		fmt.Fprintf(out, "assistant> %s\n", sess.Conversation().Seed())
		return false, nil
	case "/retry":
		fmt.Fprint(out, "assistant> ")
		_, err := c.generator.Regenerate(ctx, sess, func(frag string) error {
			_, err := io.WriteString(out, frag)
			return err
		})
		fmt.Fprintln(out)
		return false, err
	case "/model":
		if !c.catalog.Has(arg) {
			return false, fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, arg)
		}
		params.Model = arg
	case "/temperature", "/top_p":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return false, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		if name == "/temperature" {
			params.Temperature = v
		} else {
			params.TopP = v
		}
		params = params.Clamp()
	default:
		return false, fmt.Errorf("%w: unknown command %s", apperrors.ErrInvalidInput, name)
	}

	sess.SetParams(params)
	fmt.Fprintf(out, "model=%s temperature=%.2f top_p=%.2f\n", params.Model, params.Temperature, params.TopP)
	for _, w := range params.Warnings() {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return false, nil
}
