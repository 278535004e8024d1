package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// MaxSize bounds a downloaded media payload
const MaxSize = 20 * 1024 * 1024

// Result is a downloaded media payload
type Result struct {
	URL         string
	ContentType string
	Data        []byte
}

// Fetcher downloads media from URLs
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher. A nil client gets a 30 second timeout.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads the media at rawURL. When the URL serves an HTML page, the
// first media the page advertises is downloaded instead.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	res, err := f.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if !isHTML(res.ContentType) {
		return res, nil
	}

	ref := extractMediaURL(string(res.Data))
	if ref == "" {
		return nil, fmt.Errorf("no media found on page %s", u)
	}
	mediaURL, err := u.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid media URL %q: %w", ref, err)
	}

	res, err = f.get(ctx, mediaURL.String())
	if err != nil {
		return nil, err
	}
	if isHTML(res.ContentType) {
		return nil, fmt.Errorf("media URL %s serves a page", mediaURL)
	}
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "replybot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxSize {
		return nil, fmt.Errorf("media larger than %d bytes", MaxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &Result{URL: rawURL, ContentType: contentType, Data: body}, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return u, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "text/html" || mt == "application/xhtml+xml")
}

// ogPriority orders the Open Graph properties a page can advertise media with
var ogPriority = []string{"og:audio", "og:video", "og:video:url", "og:image"}

// extractMediaURL returns the most specific media reference of an HTML page:
// Open Graph audio, video or image, else the first <audio>, <video> or <source> src.
func extractMediaURL(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	og := make(map[string]string)
	var inline string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				prop := attr(n, "property")
				if prop == "" {
					prop = attr(n, "name")
				}
				if content := attr(n, "content"); content != "" {
					if _, seen := og[prop]; !seen {
						og[prop] = content
					}
				}
			case "audio", "video", "source":
				if src := attr(n, "src"); src != "" && inline == "" {
					inline = src
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, prop := range ogPriority {
		if v := og[prop]; v != "" {
			return v
		}
	}
	return inline
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
