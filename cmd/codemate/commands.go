package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codemate/pkg/ai"
	"codemate/pkg/app"
	"codemate/pkg/commands"
	"codemate/pkg/config"
	"codemate/pkg/editor"
	"codemate/pkg/inline"
	"codemate/pkg/ui"
	"codemate/pkg/vcs"
)

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// parsePosition reads a 1-based "line:col" into a 0-based position.
func parsePosition(s string) (editor.Position, error) {
	lineText, colText, ok := strings.Cut(s, ":")
	if !ok {
		return editor.Position{}, fmt.Errorf("invalid position %q, want line:col", s)
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return editor.Position{}, fmt.Errorf("invalid line in %q", s)
	}
	col, err := strconv.Atoi(colText)
	if err != nil || col < 1 {
		return editor.Position{}, fmt.Errorf("invalid column in %q", s)
	}
	return editor.Position{Line: line - 1, Column: col - 1}, nil
}

func (c *cli) complete(ctx context.Context, a *app.App, args []string) error {
	fs := c.flagSet("complete")
	file := fs.String("file", "", "file to complete in")
	at := fs.String("at", "", "cursor position as line:col (1-based)")
	explicit := fs.Bool("explicit", false, "treat as a user-invoked request")
	showPrompt := fs.Bool("prompt", false, "print the completion prompt instead of calling the model")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *at == "" {
		return errors.New("complete requires -file and -at")
	}

	doc, err := editor.OpenTextDocument(*file)
	if err != nil {
		return err
	}
	pos, err := parsePosition(*at)
	if err != nil {
		return err
	}

	engine := a.Engine()
	if *showPrompt {
		p, err := engine.CompletionPrompt(doc, pos)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, p)
		return nil
	}

	trigger := inline.TriggerAutomatic
	if *explicit {
		trigger = inline.TriggerExplicit
	}
	suggestion, ok := engine.Provide(ctx, inline.Request{Document: doc, Position: pos, Trigger: trigger})
	if !ok {
		fmt.Fprintln(c.stdout, c.render.Muted("No suggestion"))
		return nil
	}
	fmt.Fprintln(c.stdout, c.render.Suggestion(suggestion.FilterText, suggestion.Text))
	return nil
}

func (c *cli) runCommand(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprint(c.stdout, c.render.CommandList(a.Dispatcher().Handlers()))
		return errors.New("run requires a command name")
	}
	name, args := args[0], args[1:]

	fs := c.flagSet("run " + name)
	file := fs.String("file", "", "active file")
	from := fs.String("from", "", "selection start as line:col (1-based)")
	to := fs.String("to", "", "selection end as line:col (1-based)")
	input := fs.String("input", "", "free-form input (description, target language, error text)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := &commands.Request{Input: *input, Dir: c.dir}
	if *file != "" {
		doc, err := editor.OpenTextDocument(*file)
		if err != nil {
			return err
		}
		req.Document = doc
	}
	if *from != "" {
		anchor, err := parsePosition(*from)
		if err != nil {
			return err
		}
		active := anchor
		if *to != "" {
			if active, err = parsePosition(*to); err != nil {
				return err
			}
		}
		req.Selection = &editor.Selection{Anchor: anchor, Active: active}
	}

	res := a.Dispatcher().Dispatch(ctx, name, req)
	fmt.Fprint(c.stdout, c.render.Result(res))
	return res.Err
}

func (c *cli) chat(ctx context.Context, a *app.App, args []string) error {
	fs := c.flagSet("chat")
	file := fs.String("file", "", "file referenced by #thisFile")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var doc editor.Document
	if *file != "" {
		d, err := editor.OpenTextDocument(*file)
		if err != nil {
			return err
		}
		doc = d
	}

	session := a.NewChat(c.dir)
	fmt.Fprintln(c.stdout, c.render.Muted("Type a message. /clear resets the history, /export prints it, /exit quits."))

	scanner := bufio.NewScanner(c.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			session.Clear()
			fmt.Fprintln(c.stdout, c.render.Muted("History cleared"))
			continue
		case "/export":
			fmt.Fprintln(c.stdout, session.Export())
			continue
		}

		events, err := session.Send(ctx, line, doc)
		if err != nil {
			return err
		}
		for ev := range events {
			if ev.Err != nil {
				fmt.Fprintln(c.stdout, c.render.Error(ai.UserMessage(ev.Err)))
				continue
			}
			fmt.Fprint(c.stdout, ev.Delta)
			if ev.Done {
				fmt.Fprintln(c.stdout)
				if ev.Truncated {
					fmt.Fprintln(c.stdout, c.render.Warning("Response ended early"))
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *cli) testConnection(ctx context.Context, a *app.App) error {
	res := a.Selector.TestConnection(ctx)
	if !res.Success {
		return fmt.Errorf("connection test failed: %s", res.Error)
	}
	fmt.Fprintln(c.stdout, c.render.Success("Connection successful"))
	return nil
}

// models lists what the selected provider offers. OpenAI-compatible servers
// are queried and cached; Gemini comes from the built-in catalog.
func (c *cli) models(ctx context.Context, a *app.App) error {
	pc := ai.ProviderConfigFrom(a.Store.Get())

	var models []ai.ModelInfo
	switch pc.Kind {
	case ai.KindGemini:
		models = ai.CatalogModels(pc.Kind)
	default:
		apiURL := pc.Endpoint
		if pc.Kind == ai.KindLocal {
			apiURL = strings.TrimRight(apiURL, "/") + "/v1"
		}
		client := &http.Client{Timeout: 15 * time.Second}
		cache, err := ai.RefreshModelCache(ctx, client, apiURL, pc.APIKey, ai.DefaultModelCachePath())
		if err != nil {
			cached, cacheErr := ai.LoadModelCache(ai.DefaultModelCachePath())
			if cacheErr != nil || cached.Endpoint != apiURL || len(cached.Models) == 0 {
				if pc.Kind == ai.KindOpenAI {
					models = ai.CatalogModels(pc.Kind)
					break
				}
				return fmt.Errorf("failed to list models: %s", ai.UserMessage(err))
			}
			fmt.Fprintln(c.stdout, c.render.Warning("Using cached model list from "+cached.UpdatedAt.Format(time.DateTime)))
			cache = cached
		}
		if models == nil {
			models = cache.Models
		}
	}

	for _, m := range models {
		marker := "  "
		if m.ID == pc.Model {
			marker = "* "
		}
		name := m.ID
		if m.Name != "" && m.Name != m.ID {
			name += " " + c.render.Muted("("+m.Name+")")
		}
		fmt.Fprintln(c.stdout, marker+name)
	}
	return nil
}

func (c *cli) use(a *app.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("use requires one of: %s, %s, %s", config.ProviderOpenAI, config.ProviderGemini, config.ProviderLocal)
	}
	kind := strings.ToLower(args[0])
	if err := a.Store.Update(func(cfg *config.Config) { cfg.LLMProvider = kind }); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, c.render.StatusLine(c.status(a, "Provider switched")))
	return nil
}

func (c *cli) status(a *app.App, message string) ui.Status {
	s := ui.Status{Dir: c.dir, Message: message}
	if repo, err := vcs.Open(c.dir); err == nil {
		s.Branch = repo.Branch()
	}
	if p := a.Selector.Current(); p != nil {
		desc := p.Describe()
		s.Provider, s.Model = desc.ProviderLabel, desc.DisplayName
		if !p.IsConfigured() {
			s.Model += " (not configured)"
		}
	}
	return s
}
