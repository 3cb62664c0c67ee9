package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"codemate/pkg/ai"
	"codemate/pkg/editor"
	"codemate/pkg/logging"
	"codemate/pkg/prompt"
	"codemate/pkg/vcs"
)

// contextRadius is how many lines around the cursor or selection are sent
// with name and error explanations.
const contextRadius = 5

type deps struct {
	assistant Assistant
	prompts   *prompt.Library
}

// complete sends one system+user exchange to the live provider.
func (d *deps) complete(ctx context.Context, command, userPrompt string) (string, error) {
	provider, err := d.assistant.Available()
	if err != nil {
		return "", err
	}

	logging.Trace("command_prompt", "command", command, "prompt", userPrompt)
	res, err := provider.CreateChatCompletion(ctx, ai.ChatRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: prompt.SystemPrompt},
			{Role: ai.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

func failure(action string, err error) *Result {
	return &Result{
		Title:   "Error",
		Content: "Failed to " + action + ": " + ai.UserMessage(err),
		Kind:    KindMessage,
		Err:     err,
	}
}

func rejected(hint string, err error) *Result {
	return &Result{Title: "Error", Content: hint, Kind: KindMessage, Err: err}
}

func selectedText(req *Request) string {
	if req.Selection == nil || req.Selection.IsEmpty() {
		return ""
	}
	r := req.Selection.Range()
	return req.Document.Text(&r)
}

// surrounding returns the lines from first-radius up to (not including)
// last+radius.
func surrounding(doc editor.Document, first, last int) string {
	start := max(0, first-contextRadius)
	end := min(doc.LineCount()-1, last+contextRadius)
	return doc.Text(&editor.Range{
		Start: editor.Position{Line: start},
		End:   editor.Position{Line: end},
	})
}

// GenerateHandler generates code from a description.
type GenerateHandler struct{ *deps }

func (h *GenerateHandler) Name() string        { return "generate" }
func (h *GenerateHandler) Description() string { return "Generate code from a description" }

func (h *GenerateHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	description := strings.TrimSpace(req.Input)
	if description == "" {
		return rejected("Describe the code you want to generate", ErrNoInput)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.CodeGeneration, map[string]string{
		"description":  description,
		"fileName":     cc.FileName,
		"language":     cc.Language,
		"selectedCode": cc.SelectedText,
	})
	if err != nil {
		return failure("generate code", err)
	}

	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("generate code", err)
	}
	return &Result{
		Title:    "Generated Code",
		Content:  out,
		Kind:     KindDiff,
		Original: cc.SelectedText,
		FileName: cc.FileName,
		Language: cc.Language,
	}
}

// ExplainHandler explains the selection, with dedicated prompts for regular
// expressions, SQL and cron expressions.
type ExplainHandler struct{ *deps }

func (h *ExplainHandler) Name() string        { return "explain" }
func (h *ExplainHandler) Description() string { return "Explain the selected code" }

func (h *ExplainHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	code := selectedText(req)
	if code == "" {
		return rejected("Please select some code to explain", ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	id := prompt.CodeExplanation
	switch {
	case editor.IsRegexPattern(code):
		id = prompt.RegexExplanation
	case editor.IsSQLQuery(code):
		id = prompt.SQLExplanation
	case editor.IsCronExpression(code):
		id = prompt.CronExplanation
	}

	text, err := h.prompts.Format(id, map[string]string{"language": cc.Language, "code": code})
	if err != nil {
		return failure("explain code", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("explain code", err)
	}
	return &Result{Title: "Explanation", Content: out, Kind: KindDocument, Language: "markdown"}
}

// DocumentHandler writes documentation for the selection.
type DocumentHandler struct{ *deps }

func (h *DocumentHandler) Name() string        { return "document" }
func (h *DocumentHandler) Description() string { return "Write documentation for the selection" }

func (h *DocumentHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	code := selectedText(req)
	if code == "" {
		return rejected("Please select a function or class to document", ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.Documentation, map[string]string{
		"language":  cc.Language,
		"code":      code,
		"docFormat": editor.DocumentationFormat(cc.Language),
	})
	if err != nil {
		return failure("write documentation", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("write documentation", err)
	}

	// The documentation goes directly above the selection.
	return &Result{
		Title:    "Documentation",
		Content:  out + "\n" + code,
		Kind:     KindDiff,
		Original: code,
		FileName: cc.FileName,
		Language: cc.Language,
	}
}

// ProblemsHandler looks for bugs in the selection.
type ProblemsHandler struct{ *deps }

func (h *ProblemsHandler) Name() string        { return "problems" }
func (h *ProblemsHandler) Description() string { return "Find problems in the selected code" }

func (h *ProblemsHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	code := selectedText(req)
	if code == "" {
		return rejected("Please select some code to analyze", ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.ProblemFinding, map[string]string{"language": cc.Language, "code": code})
	if err != nil {
		return failure("analyze code", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("analyze code", err)
	}
	return &Result{Title: "Code Analysis", Content: "# Code Analysis\n\n" + out, Kind: KindDocument, Language: "markdown"}
}

// TestsHandler generates unit tests for the selection or the function under
// the cursor.
type TestsHandler struct{ *deps }

func (h *TestsHandler) Name() string        { return "tests" }
func (h *TestsHandler) Description() string { return "Generate unit tests" }

func (h *TestsHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	code := selectedText(req)
	if code == "" && req.Selection != nil {
		code, _ = editor.FunctionAtPosition(req.Document, req.Selection.Active)
	}
	if code == "" {
		return rejected("Please place cursor in a function or select code to test", ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.UnitTests, map[string]string{"language": cc.Language, "code": code})
	if err != nil {
		return failure("generate unit tests", err)
	}
	text += "\n\nUse " + editor.TestFramework(cc.Language) + " for the tests."

	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("generate unit tests", err)
	}
	return &Result{
		Title:    "Unit Tests",
		Content:  out,
		Kind:     KindNewFile,
		FileName: TestFileName(cc.FileName, cc.Language),
		Language: cc.Language,
	}
}

// TestFileName suggests where generated tests for fileName should live.
func TestFileName(fileName, language string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	switch language {
	case "typescript":
		return base + ".test.ts"
	case "javascript":
		return base + ".test.js"
	case "python":
		return base + "_test.py"
	case "go":
		return base + "_test.go"
	}
	return base + ".test." + language
}

// ConvertHandler rewrites the whole document in another language.
type ConvertHandler struct{ *deps }

func (h *ConvertHandler) Name() string        { return "convert" }
func (h *ConvertHandler) Description() string { return "Convert the file to another language" }

func (h *ConvertHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	target := strings.ToLower(strings.TrimSpace(req.Input))
	if target == "" {
		return rejected("Select target language", ErrNoInput)
	}

	cc := editor.Extract(req.Document, nil)
	text, err := h.prompts.Format(prompt.LanguageConversion, map[string]string{
		"sourceLanguage": cc.Language,
		"targetLanguage": target,
		"code":           cc.WholeFileText,
	})
	if err != nil {
		return failure("convert code", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("convert code", err)
	}
	return &Result{
		Title:    "Converted to " + target,
		Content:  out,
		Kind:     KindNewFile,
		FileName: ConvertedFileName(cc.FileName, target),
		Language: target,
	}
}

// ConvertedFileName swaps the extension of fileName for the target language's.
func ConvertedFileName(fileName, target string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + editor.ExtensionFor(target)
}

// RefactorHandler suggests a refactoring of the selection.
type RefactorHandler struct{ *deps }

func (h *RefactorHandler) Name() string        { return "refactor" }
func (h *RefactorHandler) Description() string { return "Suggest a refactoring of the selection" }

func (h *RefactorHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	code := selectedText(req)
	if code == "" {
		return rejected("Please select some code to refactor", ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.Refactoring, map[string]string{"language": cc.Language, "code": code})
	if err != nil {
		return failure("suggest refactoring", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("suggest refactoring", err)
	}
	return &Result{
		Title:    "Refactored Code",
		Content:  out,
		Kind:     KindDiff,
		Original: code,
		FileName: cc.FileName,
		Language: cc.Language,
	}
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// wordAt returns the identifier touching column, if any.
func wordAt(line string, column int) string {
	offset := editor.ByteOffset(line, column)
	for _, loc := range identifierPattern.FindAllStringIndex(line, -1) {
		if loc[0] <= offset && offset <= loc[1] {
			return line[loc[0]:loc[1]]
		}
	}
	return ""
}

// NamesHandler suggests better names for the identifier under the cursor.
type NamesHandler struct{ *deps }

func (h *NamesHandler) Name() string        { return "names" }
func (h *NamesHandler) Description() string { return "Suggest better names for an identifier" }

func (h *NamesHandler) Execute(ctx context.Context, req *Request) *Result {
	if req.Document == nil {
		return rejected("No active editor found", ErrNoDocument)
	}
	hint := "Please place cursor on a variable, function, or class name"
	if req.Selection == nil {
		return rejected(hint, ErrNoSelection)
	}
	cursor := req.Selection.Active
	line, err := req.Document.LineAt(cursor.Line)
	if err != nil {
		return rejected(hint, err)
	}
	name := wordAt(line.Text, cursor.Column)
	if name == "" {
		return rejected(hint, ErrNoSelection)
	}

	cc := editor.Extract(req.Document, req.Selection)
	text, err := h.prompts.Format(prompt.NameGeneration, map[string]string{
		"type":        "identifier",
		"currentName": name,
		"language":    cc.Language,
		"code":        surrounding(req.Document, cursor.Line, cursor.Line),
	})
	if err != nil {
		return failure("suggest names", err)
	}
	out, err := h.complete(ctx, h.Name(), prompt.WithContext(text, cc))
	if err != nil {
		return failure("suggest names", err)
	}
	title := fmt.Sprintf("Name Suggestions for %q", name)
	return &Result{Title: title, Content: "# " + title + "\n\n" + out, Kind: KindDocument, Language: "markdown"}
}

// ExplainErrorHandler explains an error message, using the selection as the
// error text when Input is empty.
type ExplainErrorHandler struct{ *deps }

func (h *ExplainErrorHandler) Name() string        { return "explain-error" }
func (h *ExplainErrorHandler) Description() string { return "Explain an error message" }

func (h *ExplainErrorHandler) Execute(ctx context.Context, req *Request) *Result {
	errText := ""
	if req.Document != nil {
		errText = selectedText(req)
	}
	if strings.TrimSpace(errText) == "" {
		errText = strings.TrimSpace(req.Input)
	}
	if errText == "" {
		return rejected("Enter the error message you want explained", ErrNoInput)
	}

	vars := map[string]string{
		"error":    errText,
		"fileName": "unknown",
		"language": "unknown",
		"code":     "No additional context available",
	}
	if req.Document != nil {
		cc := editor.Extract(req.Document, req.Selection)
		vars["fileName"] = cc.FileName
		vars["language"] = cc.Language
		if req.Selection != nil && !req.Selection.IsEmpty() {
			r := req.Selection.Range()
			if code := surrounding(req.Document, r.Start.Line, r.End.Line); code != "" {
				vars["code"] = code
			}
		}
	}

	text, err := h.prompts.Format(prompt.ErrorExplanation, vars)
	if err != nil {
		return failure("explain error", err)
	}
	out, err := h.complete(ctx, h.Name(), text)
	if err != nil {
		return failure("explain error", err)
	}
	content := "# Error Explanation\n\n## Original Error\n```\n" + errText + "\n```\n\n## Explanation\n\n" + out
	return &Result{Title: "Error Explanation", Content: content, Kind: KindDocument, Language: "markdown"}
}

// CommitMessageHandler drafts a commit message from the repository diff.
// Staged changes win; otherwise every change is described.
type CommitMessageHandler struct{ *deps }

func (h *CommitMessageHandler) Name() string        { return "commit-message" }
func (h *CommitMessageHandler) Description() string { return "Draft a commit message for local changes" }

func (h *CommitMessageHandler) Execute(ctx context.Context, req *Request) *Result {
	repo, err := vcs.Open(req.Dir)
	if errors.Is(err, vcs.ErrNotRepository) {
		return rejected("Not in a git repository", err)
	}
	if err != nil {
		return failure("generate commit message", err)
	}

	diff, err := repo.StagedDiff()
	if err != nil {
		return failure("generate commit message", err)
	}
	if strings.TrimSpace(diff) == "" {
		if diff, err = repo.AllChanges(); err != nil {
			return failure("generate commit message", err)
		}
	}
	if strings.TrimSpace(diff) == "" || diff == vcs.NoChanges {
		return &Result{Title: "Commit Message", Content: "No changes to commit", Kind: KindMessage}
	}

	text, err := h.prompts.Format(prompt.CommitMessage, map[string]string{"diff": diff})
	if err != nil {
		return failure("generate commit message", err)
	}
	out, err := h.complete(ctx, h.Name(), text)
	if err != nil {
		return failure("generate commit message", err)
	}
	return &Result{Title: "Commit Message (" + repo.Branch() + ")", Content: out, Kind: KindDocument, Language: "text"}
}

// TestConnectionHandler probes the configured provider.
type TestConnectionHandler struct{ *deps }

func (h *TestConnectionHandler) Name() string        { return "test-connection" }
func (h *TestConnectionHandler) Description() string { return "Test the connection to the AI provider" }

func (h *TestConnectionHandler) Execute(ctx context.Context, _ *Request) *Result {
	res := h.assistant.TestConnection(ctx)
	if !res.Success {
		return &Result{
			Title:   "Connection Test",
			Content: "Connection test failed: " + res.Error,
			Kind:    KindMessage,
			Err:     errors.New(res.Error),
		}
	}
	return &Result{Title: "Connection Test", Content: "Connection successful", Kind: KindMessage}
}
