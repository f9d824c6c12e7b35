package resume

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFetchPlainText(t *testing.T) {
	var userAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("  Experienced analyst with Excel skills  "))
	}))
	defer srv.Close()

	f := New(Config{}, zap.NewNop())

	got := f.Fetch(context.Background(), srv.URL+"/cv.txt")
	if got != "Experienced analyst with Excel skills" {
		t.Fatalf("unexpected text: %q", got)
	}

	if ua, _ := userAgent.Load().(string); !strings.HasPrefix(ua, "Mozilla/5.0") {
		t.Fatalf("expected browser-like user agent, got %q", ua)
	}
}

func TestFetchFollowsEmbeddedDownload(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/preview", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><a href="/sfc/servlet.shepherd/version/download/068XYZ?asPdf=false&amp;op=CHATTER">Download</a></html>`))
	})
	mux.HandleFunc("/sfc/servlet.shepherd/version/download/068XYZ", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("op") != "CHATTER" {
			t.Errorf("expected unescaped query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("direct resume body"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := New(Config{BypassDomain: u.Hostname()}, zap.NewNop())

	if got := f.Fetch(context.Background(), srv.URL+"/preview"); got != "direct resume body" {
		t.Fatalf("unexpected text: %q", got)
	}

	if hits.Load() != 2 {
		t.Fatalf("expected two requests, got %d", hits.Load())
	}
}

// singlePagePDF renders text on one page with a correct xref table.
func singlePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 18 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// minimalDOCX packs a one-paragraph WordprocessingML document.
func minimalDOCX(t *testing.T, text string) []byte {
	t.Helper()

	files := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range files {
		w, err := zw.Create(file.name)
		if err != nil {
			t.Fatalf("create %s: %v", file.name, err)
		}
		if _, err := w.Write([]byte(file.body)); err != nil {
			t.Fatalf("write %s: %v", file.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestFetchExtractsDocuments(t *testing.T) {
	pdfBody := singlePagePDF("Seasoned auditor with IFRS experience")
	docxBody := minimalDOCX(t, "Payroll specialist fluent in Swahili")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cv.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(pdfBody)
		case "/cv.docx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
			w.Write(docxBody)
		}
	}))
	defer srv.Close()

	f := New(Config{}, zap.NewNop())

	if got := f.Fetch(context.Background(), srv.URL+"/cv.pdf"); !strings.Contains(got, "Seasoned auditor with IFRS experience") {
		t.Fatalf("expected pdf page text, got %q", got)
	}
	if got := f.Fetch(context.Background(), srv.URL+"/cv.docx"); got != "Payroll specialist fluent in Swahili" {
		t.Fatalf("expected docx paragraph text, got %q", got)
	}
}

func TestFetchBypassRefetchesPDF(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/sfc/p/preview", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><script>var url = "/sfc/servlet.shepherd/version/download/068PDF?asPdf=true";</script></html>`))
	})
	mux.HandleFunc("/sfc/servlet.shepherd/version/download/068PDF", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(singlePagePDF("Controller with SAP background"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := New(Config{BypassDomain: u.Hostname()}, zap.NewNop())

	if got := f.Fetch(context.Background(), srv.URL+"/sfc/p/preview"); !strings.Contains(got, "Controller with SAP background") {
		t.Fatalf("expected pdf text after bypass, got %q", got)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two requests, got %d", hits.Load())
	}
}

func TestFetchDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<a href="/sfc/servlet.shepherd/version/download/1?x=1">x</a>`))
		case "/broken.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 truncated garbage"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	f := New(Config{Timeout: 50 * time.Millisecond}, zap.NewNop())

	for _, target := range []string{
		srv.URL + "/missing",
		// Not the bypass domain, so the embedded link is ignored.
		srv.URL + "/html",
		srv.URL + "/broken.pdf",
		srv.URL + "/slow",
		"ftp://example.com/cv.pdf",
		"::not a url::",
		"",
	} {
		if got := f.Fetch(context.Background(), target); got != "" {
			t.Fatalf("expected empty text for %q, got %q", target, got)
		}
	}
}

func TestFindDownloadURL(t *testing.T) {
	page, _ := url.Parse("https://acme.my.salesforce.force.com/sfc/p/#/view")

	got := findDownloadURL([]byte(`window.href = '/sfc/servlet.shepherd/version/download/0685?asPdf=false';`), page)
	want := "https://acme.my.salesforce.force.com/sfc/servlet.shepherd/version/download/0685?asPdf=false"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if got := findDownloadURL([]byte("<html>nothing here</html>"), page); got != "" {
		t.Fatalf("expected no link, got %q", got)
	}
}

func TestIsBypassHost(t *testing.T) {
	f := New(Config{}, nil)

	cases := map[string]bool{
		"force.com":                  true,
		"acme.file.force.com":        true,
		"notforce.com":               false,
		"force.com.attacker.example": false,
	}

	for host, want := range cases {
		if got := f.isBypassHost(host); got != want {
			t.Fatalf("isBypassHost(%q) = %v, want %v", host, got, want)
		}
	}
}
