package app

import (
	"context"
	"net/http/httptest"
	"testing"

	"codemate/pkg/commands"
	"codemate/pkg/config"
	"codemate/pkg/editor"
	"codemate/pkg/mockserver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockApp(t *testing.T) *App {
	t.Helper()
	srv := httptest.NewServer(mockserver.New(mockserver.WithWordDelay(0)).Router)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.LLMProvider = config.ProviderLocal
	cfg.Providers.Local.APIURL = srv.URL
	cfg.Providers.Local.APIKey = mockserver.APIKey
	cfg.Providers.Local.Model = mockserver.Model

	a, err := New(config.NewStore("", cfg))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_BuildsProviderFromConfig(t *testing.T) {
	a := newMockApp(t)

	provider := a.Selector.Current()
	require.NotNil(t, provider)
	assert.True(t, provider.IsConfigured())
	assert.Equal(t, "Local AI", provider.Describe().ProviderLabel)

	res := a.Dispatcher().Dispatch(context.Background(), "test-connection", &commands.Request{})
	require.NoError(t, res.Err)
	assert.Equal(t, "Connection successful", res.Content)
}

func TestDispatch_AgainstMockServer(t *testing.T) {
	a := newMockApp(t)
	doc := editor.NewTextDocument("calc.go", "go", "package calc\n\nfunc add(a, b int) int { return a + b }\n")
	sel := editor.Selection{
		Anchor: editor.Position{Line: 2, Column: 0},
		Active: editor.Position{Line: 2, Column: 40},
	}

	res := a.Dispatcher().Dispatch(context.Background(), "refactor", &commands.Request{Document: doc, Selection: &sel})
	require.NoError(t, res.Err)
	assert.Equal(t, commands.KindDiff, res.Kind)
	assert.NotEmpty(t, res.Content)
}

func TestProviderSwitch_RefreshesSelector(t *testing.T) {
	a := newMockApp(t)

	require.NoError(t, a.Store.Update(func(cfg *config.Config) {
		cfg.LLMProvider = config.ProviderOpenAI
		cfg.Providers.OpenAI.APIKey = ""
	}))

	provider := a.Selector.Current()
	require.NotNil(t, provider)
	assert.Equal(t, "OpenAI", provider.Describe().ProviderLabel)
	assert.False(t, provider.IsConfigured())

	res := a.Dispatcher().Dispatch(context.Background(), "test-connection", &commands.Request{})
	assert.Contains(t, res.Content, "Connection test failed")
}

func TestPromptOverride_RebuildsDependents(t *testing.T) {
	a := newMockApp(t)
	engine, dispatcher := a.Engine(), a.Dispatcher()

	require.NoError(t, a.Store.Update(func(cfg *config.Config) {
		cfg.Prompts = map[string]string{"refactoring": "Tidy this:\n{code}"}
	}))

	tmpl, ok := a.Prompts().Get("refactoring")
	require.True(t, ok)
	assert.True(t, tmpl.Custom)
	assert.NotSame(t, engine, a.Engine())
	assert.NotSame(t, dispatcher, a.Dispatcher())
}

func TestInlineSettingsFollowConfig(t *testing.T) {
	a := newMockApp(t)
	require.True(t, a.Engine().Settings().Enabled)

	require.NoError(t, a.Store.Update(func(cfg *config.Config) {
		cfg.Inline.Enabled = false
		cfg.Inline.Exclude = []string{"**/*.md"}
	}))

	settings := a.Engine().Settings()
	assert.False(t, settings.Enabled)
	assert.Equal(t, []string{"**/*.md"}, settings.Exclude)
}

func TestChatAgainstMockServer(t *testing.T) {
	a := newMockApp(t)
	chat := a.NewChat(t.TempDir())

	answer, err := chat.Ask(context.Background(), "hello there", nil)
	require.NoError(t, err)
	assert.Equal(t, mockserver.Fallback+" ", answer)
	assert.Len(t, chat.History(), 2)
}
