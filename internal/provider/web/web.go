// Package web scrapes OpenGraph and schema.org metadata from a configured
// web page for movies and series.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mmcdole/mediacenter/internal/domain"
	"github.com/mmcdole/mediacenter/internal/provider"
)

const Kind = "web.opengraph"

// maxBody bounds how much of a page is read.
const maxBody = 4 << 20

var (
	// ErrNoSearchURL indicates the provider is not configured.
	ErrNoSearchURL = errors.New("web search url not configured")

	// ErrNotFound indicates the page had no usable metadata.
	ErrNotFound = errors.New("no metadata found on page")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options configure the provider.
type Options struct {
	// SearchURL may contain {title} and {year}
	SearchURL string
	UserAgent string
	MaxAge    time.Duration
	Client    *http.Client
	Now       func() time.Time
}

type state struct {
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Provider fills in fields local providers left empty from a web page.
type Provider struct {
	provider.Base
	provider.Stateful[state]

	opts Options
}

// Descriptor registers the provider.
func Descriptor(opts Options) provider.Descriptor {
	return provider.Descriptor{
		Kind:             Kind,
		RequiresInternet: true,
		Priority:         provider.Priority(30),
		SupportedTypes: []provider.TypeSupport{
			{Kind: domain.KindMovie},
			{Kind: domain.KindSeries},
		},
		New: func() provider.Provider { return New(opts) },
	}
}

// New creates a provider.
func New(opts Options) *Provider {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{opts: opts}
}

func (p *Provider) Kind() string { return Kind }

func (p *Provider) NeedsRefresh(ctx context.Context) (bool, error) {
	if p.opts.SearchURL == "" {
		return false, nil
	}
	u := p.pageURL(p.Item())
	if u != p.State.URL || p.State.FetchedAt.IsZero() {
		return true, nil
	}
	return p.opts.MaxAge > 0 && p.opts.Now().Sub(p.State.FetchedAt) > p.opts.MaxAge, nil
}

func (p *Provider) Fetch(ctx context.Context) error {
	if p.opts.SearchURL == "" {
		return ErrNoSearchURL
	}
	item := p.Item()
	u := p.pageURL(item)

	html, err := p.get(ctx, u)
	if err != nil {
		return err
	}
	meta, err := Parse(html)
	if err != nil {
		return fmt.Errorf("%s: %w", u, err)
	}
	meta.apply(item)

	p.State = state{URL: u, FetchedAt: p.opts.Now()}
	return nil
}

// pageURL expands the search template for item.
func (p *Provider) pageURL(item *domain.Item) string {
	year := ""
	if item.Year > 0 {
		year = strconv.Itoa(item.Year)
	}
	return strings.NewReplacer(
		"{title}", url.QueryEscape(item.DisplayTitle()),
		"{year}", year,
	).Replace(p.opts.SearchURL)
}

func (p *Provider) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if p.opts.UserAgent != "" {
		req.Header.Set("User-Agent", p.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// Meta is what a page says about a title.
type Meta struct {
	Title    string
	Overview string
	Year     int
	Rating   float64
	Genres   []string
	Image    string
	URL      string
}

// Parse extracts OpenGraph, video and schema.org properties from html.
func Parse(html []byte) (Meta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Meta{}, err
	}

	var m Meta
	m.Title = firstNonEmpty(metaContent(doc, "og:title"), normSpace(doc.Find("title").First().Text()))
	m.Overview = firstNonEmpty(metaContent(doc, "og:description"), metaContent(doc, "description"))
	m.Image = metaContent(doc, "og:image")
	m.URL = metaContent(doc, "og:url")

	release := firstNonEmpty(metaContent(doc, "video:release_date"), itemprop(doc, "datePublished"))
	if len(release) >= 4 {
		if y, err := strconv.Atoi(release[:4]); err == nil {
			m.Year = y
		}
	}
	if r, err := strconv.ParseFloat(itemprop(doc, "ratingValue"), 64); err == nil {
		m.Rating = r
	}

	seen := map[string]bool{}
	doc.Find(`meta[property="video:tag"], [itemprop="genre"]`).Each(func(_ int, s *goquery.Selection) {
		g, ok := s.Attr("content")
		if !ok {
			g = s.Text()
		}
		g = normSpace(g)
		if g != "" && !seen[strings.ToLower(g)] {
			seen[strings.ToLower(g)] = true
			m.Genres = append(m.Genres, g)
		}
	})

	if m.Title == "" {
		return Meta{}, ErrNotFound
	}
	return m, nil
}

// apply fills only the fields the item does not have yet.
func (m Meta) apply(item *domain.Item) {
	if item.Title == "" {
		item.Title = m.Title
	}
	if item.Overview == "" {
		item.Overview = m.Overview
	}
	if item.Year == 0 {
		item.Year = m.Year
	}
	if item.Rating == 0 {
		item.Rating = m.Rating
	}
	if len(item.Genres) == 0 && len(m.Genres) > 0 {
		item.Genres = m.Genres
	}
	// remote image, fetched by the UI on demand
	if item.PrimaryImagePath == "" {
		item.PrimaryImagePath = m.Image
	}
	if m.URL != "" {
		if item.ProviderIDs == nil {
			item.ProviderIDs = make(map[string]string)
		}
		item.ProviderIDs["web"] = m.URL
	}
}

// metaContent looks up <meta property=name> then <meta name=name>.
func metaContent(doc *goquery.Document, name string) string {
	for _, attr := range []string{"property", "name"} {
		if v, ok := doc.Find(fmt.Sprintf(`meta[%s="%s"]`, attr, name)).First().Attr("content"); ok {
			if v = normSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func itemprop(doc *goquery.Document, name string) string {
	s := doc.Find(fmt.Sprintf(`[itemprop="%s"]`, name)).First()
	if v, ok := s.Attr("content"); ok {
		return normSpace(v)
	}
	return normSpace(s.Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
