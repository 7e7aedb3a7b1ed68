package scraper

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStart  = "start"
	ctxBody   = "body"
	ctxStatus = "status"
)

// Fetcher retrieves listing pages through a colly collector. Each call makes
// exactly one request; there is no retry.
type Fetcher struct {
	collector      *colly.Collector
	userAgent      string
	acceptLanguage string
	metrics        *Metrics
	logger         *slog.Logger
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, opts ...Option) *Fetcher {
	o := newOptions(opts)

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	if cfg.MaxBodySize > 0 {
		collector.MaxBodySize = cfg.MaxBodySize
	}
	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	f := &Fetcher{
		collector:      collector,
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		metrics:        o.metrics,
		logger:         o.logger,
	}
	f.configureHandlers()
	return f
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		f.metrics.IncRequest("started")
		f.logger.Debug("fetching page", slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		f.metrics.IncRequest("completed")
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		f.metrics.IncRequest("failed")
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})
}

// Fetch returns the body of pageURL or a *FetchError.
func (f *Fetcher) Fetch(pageURL string) ([]byte, error) {
	ctx := colly.NewContext()
	hdr := http.Header{}
	hdr.Set("User-Agent", f.userAgent)
	if f.acceptLanguage != "" {
		hdr.Set("Accept-Language", f.acceptLanguage)
	}

	if err := f.collector.Request(http.MethodGet, pageURL, nil, ctx, hdr); err != nil {
		status, _ := ctx.GetAny(ctxStatus).(int)
		fetchErr := classifyError(pageURL, err, status)
		f.metrics.IncError(ErrorLabel(fetchErr))
		return nil, fetchErr
	}

	body, _ := ctx.GetAny(ctxBody).([]byte)
	return body, nil
}
