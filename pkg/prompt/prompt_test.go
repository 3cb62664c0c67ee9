package prompt

import (
	"strings"
	"testing"

	"codemate/pkg/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLibrary_BuiltIns(t *testing.T) {
	lib, err := NewLibrary(nil)
	require.NoError(t, err)

	ids := []string{
		CodeGeneration, CodeExplanation, RegexExplanation, SQLExplanation, CronExplanation,
		Documentation, ProblemFinding, UnitTests, Refactoring, CommitMessage,
		NameGeneration, LanguageConversion, ErrorExplanation, InlineCompletion,
	}
	for _, id := range ids {
		tmpl, ok := lib.Get(id)
		require.True(t, ok, id)
		assert.NotEmpty(t, tmpl.Name, id)
		assert.NotEmpty(t, tmpl.Template, id)
		assert.False(t, tmpl.Custom, id)
		for _, v := range tmpl.Variables {
			assert.Contains(t, tmpl.Template, "{"+v+"}", "%s declares %s", id, v)
		}
	}
	assert.Len(t, lib.All(), len(ids))
	assert.Equal(t, CodeGeneration, lib.All()[0].ID)
}

func TestFormat_SubstitutesEveryOccurrence(t *testing.T) {
	lib, err := NewLibrary(nil)
	require.NoError(t, err)

	got, err := lib.Format(CodeExplanation, map[string]string{
		"language": "go",
		"code":     "x := 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Explain the following code in detail. Break down what it does, how it works, and any important concepts:\n\n```go\nx := 1\n```", got)

	got, err = lib.Format(LanguageConversion, map[string]string{
		"sourceLanguage": "python",
		"targetLanguage": "go",
		"code":           "print(1)",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(got, "python"))
	assert.NotContains(t, got, "{sourceLanguage}")
}

func TestFormat_UnknownTemplate(t *testing.T) {
	lib, err := NewLibrary(nil)
	require.NoError(t, err)

	_, err = lib.Format("doesNotExist", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "a {missing} b", Render("{x} {missing} {y}", map[string]string{"x": "a", "y": "b"}))
	assert.Equal(t, "{y}", Render("{x}", map[string]string{"x": "{y}", "y": "nope"}))
	assert.Equal(t, "unchanged {x}", Render("unchanged {x}", nil))
	assert.Equal(t, "", Render("{x}", map[string]string{"x": ""}))
}

func TestNewLibrary_Overrides(t *testing.T) {
	lib, err := NewLibrary(map[string]string{
		CommitMessage: "Summarize: {diff}",
		Refactoring:   "   ",
		"haiku":       "Write a haiku about {topic}",
	})
	require.NoError(t, err)

	tmpl, ok := lib.Get(CommitMessage)
	require.True(t, ok)
	assert.True(t, tmpl.Custom)
	assert.Equal(t, "Commit Message Generation", tmpl.Name)
	assert.Equal(t, []string{"diff"}, tmpl.Variables)

	got, err := lib.Format(CommitMessage, map[string]string{"diff": "+x"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize: +x", got)

	refactor, _ := lib.Get(Refactoring)
	assert.False(t, refactor.Custom)

	got, err = lib.Format("haiku", map[string]string{"topic": "go"})
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku about go", got)
}

func TestParseTemplates_RejectsMissingID(t *testing.T) {
	_, err := parseTemplates([]byte("templates:\n  - name: nameless\n    template: x\n"))
	assert.Error(t, err)
}

func TestWithContext(t *testing.T) {
	t.Run("selection", func(t *testing.T) {
		got := WithContext("Explain it.", editor.CodeContext{
			FileName:     "main.go",
			Language:     "go",
			SelectedText: "x := 1",
		})
		assert.Equal(t, "File: main.go\nLanguage: go\nSelected code:\n```go\nx := 1\n```\n\nExplain it.", got)
	})

	t.Run("cursor", func(t *testing.T) {
		got := WithContext("Go on.", editor.CodeContext{
			FileName: "app.ts",
			Language: "typescript",
			Cursor:   &editor.Position{Line: 4, Column: 9},
		})
		assert.Equal(t, "File: app.ts\nLanguage: typescript\nCursor position: Line 4, Column 9\n\nGo on.", got)
	})

	t.Run("bare", func(t *testing.T) {
		got := WithContext("Hi", editor.CodeContext{FileName: "x", Language: "text"})
		assert.Equal(t, "File: x\nLanguage: text\n\nHi", got)
	})
}
