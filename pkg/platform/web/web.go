// Package web registers the hosted live-commerce consoles. Their adapters open the
// console URL and verify login by URL pattern; DOM features are not implemented.
package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
)

// Console describes one hosted control console.
type Console struct {
	ID       string
	Name     string
	LoginURL string
	// Verify matches the console URL once the account is logged in.
	Verify glob.Glob
}

// Matches reports whether url is the logged-in console.
func (c Console) Matches(url string) bool {
	return c.Verify.Match(url)
}

// Consoles lists the supported hosted platforms.
var Consoles = []Console{
	{
		ID:       "douyin",
		Name:     "Douyin Shop",
		LoginURL: "https://fxg.jinritemai.com/ffa/buyin/dashboard/live/control",
		Verify:   glob.MustCompile("*fxg.jinritemai.com/*live*control*"),
	},
	{
		ID:       "buyin",
		Name:     "Buyin",
		LoginURL: "https://buyin.jinritemai.com/dashboard/live/control",
		Verify:   glob.MustCompile("*buyin.jinritemai.com/*live*control*"),
	},
	{
		ID:       "eos",
		Name:     "Douyin Group Buy",
		LoginURL: "https://compass.jinritemai.com/screen/anchor/shop",
		Verify:   glob.MustCompile("*compass.jinritemai.com/screen*"),
	},
	{
		ID:       "xiaohongshu",
		Name:     "Xiaohongshu Qianfan",
		LoginURL: "https://ark.xiaohongshu.com/ark/web/center/marketing/live",
		Verify:   glob.MustCompile("*ark.xiaohongshu.com/*live*"),
	},
	{
		ID:       "pgy",
		Name:     "Xiaohongshu Pugongying",
		LoginURL: "https://pgy.xiaohongshu.com/platform/live/room",
		Verify:   glob.MustCompile("*pgy.xiaohongshu.com/*live*"),
	},
	{
		ID:       "wxchannel",
		Name:     "WeChat Channels",
		LoginURL: "https://channels.weixin.qq.com/",
		Verify:   glob.MustCompile("*channels.weixin.qq.com*"),
	},
	{
		ID:       "kuaishou",
		Name:     "Kuaishou Shop",
		LoginURL: "https://live.kuaishou.com/shop/live",
		Verify:   glob.MustCompile("*live.kuaishou.com/*live*"),
	},
	{
		ID:       "taobao",
		Name:     "Taobao Live",
		LoginURL: "https://live.taobao.com/",
		Verify:   glob.MustCompile("*live.taobao.com*"),
	},
}

// defaultWaitSlice bounds each URL wait so Login notices cancellation.
const defaultWaitSlice = time.Second

// Platform verifies login by watching the page URL.
type Platform struct {
	console   Console
	waitSlice time.Duration
}

// New creates an adapter for c.
func New(c Console) *Platform {
	return &Platform{console: c, waitSlice: defaultWaitSlice}
}

// Register adds every hosted console to reg.
func Register(reg *platform.Registry) error {
	for _, c := range Consoles {
		c := c
		err := reg.Register(platform.Info{
			ID:       c.ID,
			Name:     c.Name,
			LoginURL: c.LoginURL,
		}, func() platform.Platform { return New(c) })
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) ID() string { return p.console.ID }

// Connect opens the console URL. Saved cookies may land directly on the console.
func (p *Platform) Connect(ctx context.Context, s *browser.Session) (bool, error) {
	if _, err := s.Page.Goto(p.console.LoginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return false, fmt.Errorf("%s: open console: %w", p.console.ID, err)
	}
	return p.console.Matches(s.URL()), nil
}

// Login waits for the page to reach the console URL.
func (p *Platform) Login(ctx context.Context, s *browser.Session) error {
	timeout := float64(p.waitSlice.Milliseconds())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.Page.WaitForURL(p.console.Matches, playwright.PageWaitForURLOptions{
			Timeout: playwright.Float(timeout),
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%s: wait for console: %w", p.console.ID, err)
		}
	}
}
