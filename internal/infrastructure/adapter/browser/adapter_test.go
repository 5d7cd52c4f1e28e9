package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chatbridge/internal/domain/message"
	"github.com/erp/chatbridge/internal/domain/shared"
)

func testConfig() *Config {
	return &Config{
		RemoteURL:       "ws://127.0.0.1:9222",
		ItemSelector:    ".news-box",
		SenderSelector:  "div:first-child > span:first-child",
		ContentSelector: ".text-content",
		InputSelector:   "#edit-content",
	}
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, defaultPageTimeout, a.config.PageTimeout)
	assert.NotNil(t, a.tabCtx)
	assert.NoError(t, a.tabCtx.Err())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing item selector", func(c *Config) { c.ItemSelector = "" }},
		{"missing content selector", func(c *Config) { c.ContentSelector = "" }},
		{"missing input selector", func(c *Config) { c.InputSelector = "" }},
		{"no remote url and no launch", func(c *Config) { c.RemoteURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_LaunchWithoutRemoteURL(t *testing.T) {
	cfg := testConfig()
	cfg.RemoteURL = ""
	cfg.Launch = true
	cfg.Headless = true

	a, err := New(cfg)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestAdapter_ClosedTabIsFatal(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = a.FetchRecentMessages(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, shared.IsFatal(err))

	err = a.SendMessage(context.Background(), "YT1234567890123 催件")
	assert.True(t, shared.IsFatal(err))
}

func TestClassify(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	defer a.Close()

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"timeout", context.DeadlineExceeded, false},
		{"script error", errors.New("encountered exception 'TypeError'"), false},
		{"websocket gone", errors.New("could not dial websocket"), true},
		{"refused", errors.New("dial tcp 127.0.0.1:9222: connect: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.classify(tt.err)
			assert.Equal(t, tt.fatal, shared.IsFatal(got))
			if !tt.fatal {
				assert.ErrorIs(t, got, shared.ErrTransientAdapter)
			}
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFetchScript(t *testing.T) {
	script := fetchScript(".news-box", `div[data-role="sender"]`, ".text-content", 10)

	assert.Contains(t, script, `document.querySelectorAll(".news-box")`)
	assert.Contains(t, script, ".slice(-10)")
	assert.Contains(t, script, `text(el, "div[data-role=\"sender\"]")`)
	assert.Contains(t, script, `text(el, ".text-content")`)

	assert.Contains(t, fetchScript(".a", "", ".b", 0), ".slice(-1)")
}

func TestClearScript(t *testing.T) {
	script := clearScript("#edit-content")
	assert.Contains(t, script, `document.querySelector("#edit-content")`)
	assert.Contains(t, script, "return true")
}

func TestToRawMessages(t *testing.T) {
	got := toRawMessages([]item{
		{Sender: " 小圆 ", Body: " YT1234567890123 已加急处理\n"},
		{Sender: "小圆", Body: "   "},
		{Sender: "", Body: "YT1234567890123 已拦截"},
	})

	assert.Equal(t, []message.RawMessage{
		{Sender: "小圆", Body: "YT1234567890123 已加急处理"},
		{Sender: "", Body: "YT1234567890123 已拦截"},
	}, got)

	assert.Empty(t, toRawMessages(nil))
}
