package commands

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"codemate/pkg/ai"
	"codemate/pkg/editor"
	"codemate/pkg/prompt"
)

// Kind tells the host how to present a result.
type Kind int

const (
	// KindDocument is a markdown document opened beside the editor.
	KindDocument Kind = iota
	// KindDiff compares the original selection with a suggested replacement.
	KindDiff
	// KindNewFile is content meant to be saved under FileName.
	KindNewFile
	// KindMessage is a short notification.
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindDiff:
		return "diff"
	case KindNewFile:
		return "new-file"
	case KindMessage:
		return "message"
	default:
		return "document"
	}
}

var (
	// ErrNoDocument is returned by handlers that need an open document.
	ErrNoDocument = errors.New("no active editor found")
	// ErrNoSelection is returned by handlers that need selected text.
	ErrNoSelection = errors.New("no code selected")
	// ErrNoInput is returned when a handler needs free-text input that was not given.
	ErrNoInput = errors.New("no input provided")
)

// Request carries everything a handler may read.
type Request struct {
	Document  editor.Document
	Selection *editor.Selection
	// Input is the free-text argument: a description, a target language or
	// an error message depending on the command.
	Input string
	// Dir is where version-control context is looked up.
	Dir string
}

// Result represents the result of a command execution
type Result struct {
	Title    string
	Content  string
	Kind     Kind
	FileName string
	Language string
	// Original is the replaced text for KindDiff results.
	Original string
	Err      error
}

// Handler is the interface for command handlers
type Handler interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req *Request) *Result
}

// Assistant is what handlers need from the provider selector.
type Assistant interface {
	Available() (ai.Provider, error)
	TestConnection(ctx context.Context) ai.ConnectionResult
}

// Dispatcher routes commands to their handlers
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher with every built-in command registered.
func NewDispatcher(assistant Assistant, prompts *prompt.Library) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
	}

	deps := &deps{assistant: assistant, prompts: prompts}
	d.Register(&GenerateHandler{deps})
	d.Register(&ExplainHandler{deps})
	d.Register(&DocumentHandler{deps})
	d.Register(&ProblemsHandler{deps})
	d.Register(&TestsHandler{deps})
	d.Register(&ConvertHandler{deps})
	d.Register(&RefactorHandler{deps})
	d.Register(&NamesHandler{deps})
	d.Register(&ExplainErrorHandler{deps})
	d.Register(&CommitMessageHandler{deps})
	d.Register(&TestConnectionHandler{deps})

	return d
}

// Register adds a handler to the dispatcher
func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.Name()] = h
}

// Dispatch executes a command by name
func (d *Dispatcher) Dispatch(ctx context.Context, cmdName string, req *Request) *Result {
	handler, ok := d.handlers[cmdName]
	if !ok {
		return &Result{
			Title:   "Error",
			Content: "Unknown command: " + cmdName,
			Kind:    KindMessage,
			Err:     errors.New("unknown command"),
		}
	}
	if req == nil {
		req = &Request{}
	}

	slog.Info("command_start", "command", cmdName)
	result := handler.Execute(ctx, req)
	if result.Err != nil {
		slog.Warn("command_failed", "command", cmdName, "error", result.Err)
	} else {
		slog.Info("command_done", "command", cmdName, "kind", result.Kind.String())
	}
	return result
}

// GetHandler returns a handler by name
func (d *Dispatcher) GetHandler(cmdName string) (Handler, bool) {
	h, ok := d.handlers[cmdName]
	return h, ok
}

// Handlers lists the registered handlers sorted by name.
func (d *Dispatcher) Handlers() []Handler {
	out := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
