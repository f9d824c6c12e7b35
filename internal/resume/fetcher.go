package resume

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"

	"github.com/spigell/edge-shortlister/internal/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultTimeout   = 20 * time.Second
	defaultMaxBytes  = 20 << 20
	defaultBypass    = "force.com"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")

	// Direct download paths embedded in the vendor's file preview page.
	downloadPath = regexp.MustCompile(`(/sfc/servlet\.shepherd/[A-Za-z0-9/_\-.?=&;%]+|/[A-Za-z0-9/_\-.]*download[A-Za-z0-9/_\-.]*\?[A-Za-z0-9_\-.=&;%]+)`)
)

// Config controls how resumes are downloaded.
type Config struct {
	UserAgent    string        `mapstructure:"user-agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max-bytes"`
	BypassDomain string        `mapstructure:"bypass-domain"`
}

// Fetcher downloads a resume and turns it into plain text.
type Fetcher struct {
	HTTPClient   *http.Client
	UserAgent    string
	MaxBytes     int64
	BypassDomain string

	logger *zap.Logger
}

// New returns a Fetcher. Zero config values fall back to defaults.
func New(cfg Config, l *zap.Logger) *Fetcher {
	f := &Fetcher{
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
		UserAgent:    defaultUserAgent,
		MaxBytes:     defaultMaxBytes,
		BypassDomain: defaultBypass,
		logger:       logger.OrNop(l),
	}

	if cfg.Timeout > 0 {
		f.HTTPClient.Timeout = cfg.Timeout
	}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		f.UserAgent = ua
	}
	if cfg.MaxBytes > 0 {
		f.MaxBytes = cfg.MaxBytes
	}
	if domain := strings.TrimSpace(cfg.BypassDomain); domain != "" {
		f.BypassDomain = domain
	}

	return f
}

// Fetch returns the text of the resume behind rawURL, or "" when it cannot be
// downloaded or read. It never returns an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("resume extraction panicked", zap.String("url", rawURL), zap.Any("panic", r))
			text = ""
		}
	}()

	text, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug("resume unavailable", zap.String("url", rawURL), zap.Error(err))
		return ""
	}

	return text
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	body, contentType, err := f.get(ctx, target.String())
	if err != nil {
		return "", err
	}

	if !bytes.HasPrefix(body, pdfMagic) && f.isBypassHost(target.Hostname()) {
		if direct := findDownloadURL(body, target); direct != "" {
			f.logger.Debug("following embedded download link", zap.String("url", rawURL), zap.String("direct", direct))
			body, contentType, err = f.get(ctx, direct)
			if err != nil {
				return "", fmt.Errorf("fetch direct download: %w", err)
			}
		}
	}

	return extractText(body, contentType)
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}

	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/html;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) isBypassHost(host string) bool {
	host = strings.ToLower(host)
	domain := strings.ToLower(strings.TrimPrefix(f.BypassDomain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// findDownloadURL resolves the first embedded download path against the page origin.
func findDownloadURL(body []byte, page *url.URL) string {
	match := downloadPath.Find(body)
	if match == nil {
		return ""
	}

	ref, err := url.Parse(strings.ReplaceAll(string(match), "&amp;", "&"))
	if err != nil {
		return ""
	}

	origin := &url.URL{Scheme: page.Scheme, Host: page.Host}
	return origin.ResolveReference(ref).String()
}

func extractText(body []byte, contentType string) (string, error) {
	switch {
	case bytes.HasPrefix(body, pdfMagic):
		return extractPDF(body)
	case bytes.HasPrefix(body, zipMagic):
		return extractDOCX(body)
	case strings.HasPrefix(strings.ToLower(contentType), "text/plain"):
		return strings.TrimSpace(string(body)), nil
	default:
		return "", fmt.Errorf("unsupported resume content %q", contentType)
	}
}

func extractPDF(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), nil
}

func extractDOCX(body []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer doc.Close()

	return strings.TrimSpace(stripTags(doc.Editable().GetContent())), nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags drops the WordprocessingML markup the docx reader returns.
func stripTags(content string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(content, " ")), " ")
}
