package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/livecontrol/pkg/account"
	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/config"
	"github.com/entrhq/livecontrol/pkg/gate"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestVersionCmd(t *testing.T) {
	assert.Equal(t, version+"\n", execute(t, "version"))
}

func TestPlatformsCmd(t *testing.T) {
	out := execute(t, "platforms")
	assert.Contains(t, out, "douyin")
	assert.Contains(t, out, "xiaohongshu")
	assert.NotContains(t, out, "\ndev ")
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out := execute(t, "init", "--config", path)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Accounts)
}

func TestOptionsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteExample(path))
	t.Setenv("LIVECONTROL_CHROME_PATH", "/opt/chrome")
	t.Setenv("LIVECONTROL_OPENAI_API_KEY", "sk-env")

	opts := newOptions()
	opts.v.Set("config", path)
	opts.v.Set("headless", true)

	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/chrome", cfg.Browser.ChromePath)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "sk-env", cfg.AutoReply.AI.APIKey)
}

func TestParseFeatures(t *testing.T) {
	ids, err := parseFeatures([]string{"reply", " Speak", "reply", "popup"})
	require.NoError(t, err)
	assert.Equal(t, []task.ID{task.CommentReply, task.AutoSpeak, task.AutoPopup}, ids)

	_, err = parseFeatures([]string{"dance"})
	assert.Error(t, err)
}

type gateStarter struct {
	live    bool
	started []task.ID
	fail    task.ID
}

func (g *gateStarter) StartTask(_ context.Context, _ string, id task.ID) task.Result {
	if !g.live {
		return task.Result{Reason: string(gate.ReasonNotLive), Message: "not live"}
	}
	if id == g.fail {
		return task.Result{Reason: task.ReasonError, Message: "boom"}
	}
	g.started = append(g.started, id)
	return task.Result{Success: true}
}

func TestPendingStartsWaitForGate(t *testing.T) {
	s := &gateStarter{fail: task.AutoPopup}
	p := newPendingStarts(s, logging.Nop(), []string{"a"}, []task.ID{task.CommentReply, task.AutoPopup})

	p.handle(context.Background(), types.NewConnectStateChangedEvent("a", types.ConnectStatusConnected, ""))
	assert.Empty(t, s.started)
	assert.Len(t, p.waiting("a"), 2)

	// other events and accounts are ignored
	p.handle(context.Background(), types.NewCommentsEvent("a", nil))
	p.handle(context.Background(), types.NewStreamStateChangedEvent("b", types.StreamStatusLive))

	s.live = true
	p.handle(context.Background(), types.NewStreamStateChangedEvent("a", types.StreamStatusLive))
	assert.Equal(t, []task.ID{task.CommentReply}, s.started)
	assert.Empty(t, p.waiting("a"), "failed starts are not retried")

	p.handle(context.Background(), types.NewStreamStateChangedEvent("a", types.StreamStatusLive))
	assert.Len(t, s.started, 1)
}

func TestBuildTaskConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
auto_reply:
  rules:
    - {pattern: "*hi*", reply: "hello"}
  broadcast: {enabled: true, addr: "127.0.0.1:9999"}
auto_speak:
  messages: [a, b]
  interval: 2s
  max_interval: 4s
`))
	require.NoError(t, err)

	tc, err := buildTaskConfig(cfg, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, tc.Reply)
	assert.NotNil(t, tc.Reply.Responder)
	assert.Equal(t, "127.0.0.1:9999", tc.Reply.BroadcastAddr)
	require.NotNil(t, tc.Speak)
	assert.Equal(t, 2*time.Second, tc.Speak.Schedule.Min)
	assert.Equal(t, 4*time.Second, tc.Speak.Schedule.Max)
	assert.Nil(t, tc.Popup)

	assert.Equal(t, []task.ID{task.CommentReply, task.AutoSpeak}, autoStartIDs(cfg, tc))
	cfg.AutoStartTasks = []string{"autoSpeak", "autoPopup"}
	assert.Equal(t, []task.ID{task.AutoSpeak}, autoStartIDs(cfg, tc))
}

func TestBuildTaskConfigListenOnly(t *testing.T) {
	tc, err := buildTaskConfig(config.Default(), logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, tc.Reply)
	assert.Nil(t, tc.Reply.Responder)
	assert.Empty(t, tc.Reply.BroadcastAddr)
}

func TestBuildResponderNeedsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	rc := config.Default().AutoReply
	rc.AI.Enabled = true

	_, err := buildResponder(rc, logging.Nop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ai replies"))
}

func TestWireAppRejectsUnknownPlatform(t *testing.T) {
	cfg, err := config.Parse([]byte("accounts:\n  - {id: a, platform: nowhere}\n"))
	require.NoError(t, err)

	_, err = wireApp(cfg, logging.Nop(), func(*types.Event) {})
	assert.ErrorContains(t, err, "unknown platform")
}

func TestSelectAccounts(t *testing.T) {
	cfg, err := config.Parse(config.Example)
	require.NoError(t, err)

	all, err := selectAccounts(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := selectAccounts(cfg, []string{"test"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "dev", one[0].Platform)

	_, err = selectAccounts(cfg, []string{"missing"})
	assert.Error(t, err)
}

type brokenFactory struct{ path string }

func (f *brokenFactory) CreateSession(context.Context, browser.SessionOptions) (*browser.Session, error) {
	return nil, &browser.LaunchError{ExecPath: f.path, Err: errors.New("no such file")}
}

func (f *brokenFactory) SetExecutablePath(path string) { f.path = path }

func TestConnectAccountsReportsFailures(t *testing.T) {
	platforms, err := newPlatformRegistry()
	require.NoError(t, err)
	reg := account.NewRegistry(&brokenFactory{}, platforms)
	defer reg.CloseAll()

	var stderr bytes.Buffer
	connectAccounts(context.Background(), reg, config.BrowserConfig{ChromePath: "/opt/chrome"}, []config.AccountConfig{
		{ID: "shop-a", Platform: "dev"},
		{ID: "shop-b", Platform: "dev"},
	}, logging.Nop(), &stderr)

	out := stderr.String()
	assert.Contains(t, out, "connect shop-a: ")
	assert.Contains(t, out, "connect shop-b: ")
	assert.Contains(t, out, "/opt/chrome")
	assert.Equal(t, types.ConnectStatusError, reg.ConnectState("shop-b").Status)
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, types.NewStreamStateChangedEvent("shop-a", types.StreamStatusLive))
	printEvent(&out, types.NewCommentsEvent("shop-a", []types.LiveMessage{
		{Type: types.LiveMessageComment, Nickname: "amy", Content: "hello"},
		{Type: types.LiveMessageRoomEnter, Nickname: "bob"},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "[shop-a] stream live"))
	assert.True(t, strings.HasSuffix(lines[1], "[shop-a] amy: hello"))
}
