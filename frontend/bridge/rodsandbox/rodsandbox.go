// Package rodsandbox runs shader documents in headless Chrome pages driven
// through Rod. Each sandbox is its own page, so a crashed or hung shader
// never shares state with the next one.
package rodsandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"shaderland/frontend/bridge"
)

const (
	DefaultWidth       = 800
	DefaultHeight      = 600
	defaultPostTimeout = 2 * time.Second
)

// Options configures the browser.
type Options struct {
	// RemoteURL is the DevTools websocket of an already running Chrome.
	// Empty launches a local headless instance.
	RemoteURL string
	// Bin overrides the Chrome binary used by the launcher.
	Bin    string
	Width  int
	Height int
	Logger *zap.Logger
}

// Browser is a bridge.Factory backed by one Chrome process.
type Browser struct {
	opts    Options
	log     *zap.Logger
	browser *rod.Browser
	lnch    *launcher.Launcher
}

var _ bridge.Factory = (*Browser)(nil)

// Launch starts or connects to Chrome.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &Browser{opts: opts, log: opts.Logger.Named("rod")}

	wsURL := opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("use-angle", "swiftshader").
			Set("enable-unsafe-swiftshader")
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("rodsandbox: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.log.Debug("launched local chrome", zap.String("url", wsURL))
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("rodsandbox: connect: %w", err)
	}
	b.browser = rb
	return b, nil
}

// Open creates a page, writes html into it and signals once the load event
// fires. It returns before the document has loaded.
func (b *Browser) Open(html string, signal func(error)) (bridge.Sandbox, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("rodsandbox: new page: %w", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("rodsandbox: viewport: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sb := &Sandbox{raw: page, page: page.Context(ctx), cancel: cancel}
	go sb.load(html, signal)
	return sb, nil
}

// Close shuts the browser down. Open sandboxes stop working.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch = nil
	}
}

// Sandbox is one Chrome page running a shader document.
type Sandbox struct {
	raw    *rod.Page
	page   *rod.Page
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ bridge.Sandbox = (*Sandbox)(nil)

func (s *Sandbox) load(html string, signal func(error)) {
	if err := s.page.SetDocumentContent(html); err != nil {
		signal(err)
		return
	}
	if err := s.page.WaitLoad(); err != nil {
		signal(err)
		return
	}
	signal(nil)
}

// Post hands msg to the document through window.postMessage.
func (s *Sandbox) Post(msg bridge.Message) error {
	data, err := msg.JSON()
	if err != nil {
		return err
	}
	_, err = s.page.Timeout(defaultPostTimeout).Eval(`(m) => { window.postMessage(JSON.parse(m), "*") }`, string(data))
	return err
}

// Screenshot captures the current frame as PNG.
func (s *Sandbox) Screenshot() ([]byte, error) {
	return s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close releases the page.
func (s *Sandbox) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		err := s.raw.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
