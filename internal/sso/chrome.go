package sso

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const bindingName = "learnsyncPost"

var errNotOpen = errors.New("browser not open")

type ChromeOptions struct {
	Headless bool
	// ExecPath overrides the Chrome binary chromedp would find on PATH.
	ExecPath string
	Logger   *zap.Logger
}

// Chrome is a Browser backed by a local Chrome through the DevTools
// protocol. Document requests are paused with the fetch domain and surfaced
// as navigations; page messages arrive through a runtime binding.
type Chrome struct {
	opts   ChromeOptions
	log    *zap.Logger
	events chan Event

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
}

func NewChrome(opts ChromeOptions) *Chrome {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Chrome{
		opts:   opts,
		log:    log.Named("chrome"),
		events: make(chan Event, 16),
		closed: make(chan struct{}),
	}
}

func (c *Chrome) Events() <-chan Event { return c.events }

func (c *Chrome) Open(ctx context.Context, url, script string) error {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", c.opts.Headless))
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	c.mu.Lock()
	c.ctx = browserCtx
	c.cancel = func() {
		cancelBrowser()
		cancelAlloc()
	}
	c.mu.Unlock()

	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventBindingCalled:
			if ev.Name != bindingName {
				return
			}
			go c.emit(Event{Message: []byte(ev.Payload)})
		case *fetch.EventRequestPaused:
			exec := cdp.WithExecutor(browserCtx, chromedp.FromContext(browserCtx).Target)
			id := ev.RequestID
			nav := NewNavigation(ev.Request.URL, func(follow bool) {
				go func() {
					var err error
					if follow {
						err = fetch.ContinueRequest(id).Do(exec)
					} else {
						err = fetch.FailRequest(id, network.ErrorReasonAborted).Do(exec)
					}
					if err != nil {
						c.log.Debug("resolve paused request", zap.Bool("follow", follow), zap.Error(err))
					}
				}()
			})
			go c.emit(Event{Navigation: nav})
		}
	})

	return chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.ClearBrowserCookies().Do(ctx); err != nil {
				return err
			}
			if err := runtime.AddBinding(bindingName).Do(ctx); err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return err
			}
			return fetch.Enable().WithPatterns([]*fetch.RequestPattern{
				{URLPattern: "*", ResourceType: network.ResourceTypeDocument},
			}).Do(ctx)
		}),
		chromedp.Navigate(url),
	)
}

func (c *Chrome) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
		if ev.Navigation != nil {
			ev.Navigation.Cancel()
		}
	}
}

func (c *Chrome) Evaluate(ctx context.Context, js string) (bool, error) {
	c.mu.Lock()
	bctx := c.ctx
	c.mu.Unlock()
	if bctx == nil {
		return false, errNotOpen
	}
	var ok bool
	if err := chromedp.Run(bctx, chromedp.Evaluate(js, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
