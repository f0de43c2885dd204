package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/infrastructure/resilience"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// Client scrapes the DuckDuckGo HTML interface. It needs no API key and
// serves as the fallback search provider; the depth argument is accepted
// for contract compatibility and ignored.
type Client struct {
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(executor *resilience.Executor) *Client {
	return NewWithEndpoint(searchEndpoint, executor)
}

func NewWithEndpoint(endpoint string, executor *resilience.Executor) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int, _ string) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	var raw string
	call := func(callCtx context.Context) error {
		var err error
		raw, err = c.fetch(callCtx, query)
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "duckduckgo.search", call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	return parseResults(raw, maxResults)
}

func (c *Client) fetch(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s?q=%s", c.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("duckduckgo search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &resilience.HTTPStatusError{
			Service:    "duckduckgo",
			Operation:  "search",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	return string(body), nil
}

// parseResults walks the result markup: each hit carries an anchor with
// class result__a (title + href) and a result__snippet sibling.
func parseResults(htmlContent string, maxResults int) ([]domain.WebResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}

	var results []domain.WebResult
	var current *domain.WebResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}

		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				if current != nil && current.URL != "" {
					results = append(results, *current)
				}
				current = &domain.WebResult{
					Title: textContent(n),
					URL:   cleanResultURL(attrValue(n, "href")),
				}
			case strings.Contains(class, "result__snippet"):
				if current != nil {
					current.Content = textContent(n)
				}
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if current != nil && current.URL != "" && len(results) < maxResults {
		results = append(results, *current)
	}
	return results, nil
}

// cleanResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func cleanResultURL(href string) string {
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	if parsed.Scheme == "" {
		return "https:" + href
	}
	return href
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}
