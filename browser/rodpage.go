package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/sessiond/webnav"
)

// RodPage adapts a live rod page to the navigation engine's page
// interface. The main-document HTTP status is captured from the network
// domain while the navigation runs; when no document response is observed
// (about: pages, some redirect chains) the status stays zero.
type RodPage struct {
	page *rod.Page
}

var _ webnav.Page = (*RodPage)(nil)

func (p *RodPage) Goto(ctx context.Context, url string, timeout time.Duration) (int, error) {
	pg := p.page.Context(ctx).Timeout(timeout)

	statusCh := make(chan int, 1)
	wait := pg.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		select {
		case statusCh <- e.Response.Status:
		default:
		}
		return true
	})
	go wait()

	if err := pg.Navigate(url); err != nil {
		return 0, err
	}
	if err := pg.WaitLoad(); err != nil {
		return 0, err
	}

	select {
	case status := <-statusCh:
		return status, nil
	default:
		return 0, nil
	}
}

func (p *RodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *RodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *RodPage) Content(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *RodPage) SetContent(ctx context.Context, html string) error {
	pg := p.page.Context(ctx)
	return proto.PageSetDocumentContent{
		FrameID: pg.FrameID,
		HTML:    html,
	}.Call(pg)
}
