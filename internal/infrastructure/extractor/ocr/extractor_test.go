package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type storageFake struct {
	objects map[string][]byte
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type runnerFake struct {
	mu        sync.Mutex
	calls     []string
	pageText  map[string]string
	failPages map[string]bool
	imageSize image.Point
	err       error
}

func (f *runnerFake) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}

	switch name {
	case "pdftoppm":
		page := args[4]
		if f.failPages[page] {
			return nil, []byte("render failed"), errors.New("exit status 1")
		}
		return nil, nil, nil
	case "tesseract":
		path := args[0]
		if file, err := os.Open(path); err == nil {
			if img, err := png.Decode(file); err == nil {
				f.imageSize = img.Bounds().Size()
			}
			file.Close()
		}
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		if text, ok := f.pageText[base]; ok {
			return []byte(text), nil, nil
		}
		return []byte("Total: 12.00"), nil, nil
	}
	return nil, nil, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtractImageUpscalesBeforeOCR(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": pngBytes(t, 200, 100)}}
	runner := &runnerFake{}
	e := NewExtractor(storage, Config{MinWidth: 1000}, WithRunner(runner), WithLogger(quietLogger()))

	text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "scan.png", StoragePath: "k1"})
	if text != "Total: 12.00" {
		t.Fatalf("expected OCR text, got %q", text)
	}
	if runner.imageSize != (image.Point{X: 1000, Y: 500}) {
		t.Fatalf("expected upscaled 1000x500 image, got %v", runner.imageSize)
	}
	if len(runner.calls) != 1 || !strings.HasSuffix(runner.calls[0], "stdout -l eng") {
		t.Fatalf("unexpected calls: %v", runner.calls)
	}
}

func TestExtractImageKeepsWideImages(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": pngBytes(t, 1200, 40)}}
	runner := &runnerFake{}
	e := NewExtractor(storage, Config{MinWidth: 1000}, WithRunner(runner), WithLogger(quietLogger()))

	e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "wide.PNG", StoragePath: "k1"})
	if runner.imageSize != (image.Point{X: 1200, Y: 40}) {
		t.Fatalf("expected original size, got %v", runner.imageSize)
	}
}

func TestExtractImageUndecodableDegradesToEmpty(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": []byte("not an image")}}
	runner := &runnerFake{}
	e := NewExtractor(storage, Config{}, WithRunner(runner), WithLogger(quietLogger()))

	if text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "x.jpg", StoragePath: "k1"}); text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no OCR calls, got %v", runner.calls)
	}
}

func TestExtractScannedPDFJoinsPagesInOrder(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": []byte("%PDF-1.4 scanned")}}
	runner := &runnerFake{
		pageText:  map[string]string{"page-1": "ACME Ltd\n", "page-2": "  ", "page-3": "Total: 99.00"},
		failPages: map[string]bool{},
	}
	e := NewExtractor(storage, Config{PageConcurrency: 2},
		WithRunner(runner),
		WithPageCounter(func(string) (int, error) { return 3, nil }),
		WithLogger(quietLogger()),
	)

	text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "scan.pdf", StoragePath: "k1"})
	if text != "ACME Ltd\n\nTotal: 99.00" {
		t.Fatalf("unexpected joined text %q", text)
	}

	rendered := 0
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "pdftoppm -r 300 -png -f ") {
			rendered++
		}
	}
	if rendered != 3 {
		t.Fatalf("expected 3 rasterised pages, got %d (%v)", rendered, runner.calls)
	}
}

func TestExtractScannedPDFSkipsFailedPages(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": []byte("%PDF-1.4 scanned")}}
	runner := &runnerFake{
		pageText:  map[string]string{"page-1": "first", "page-2": "second"},
		failPages: map[string]bool{"1": true},
	}
	e := NewExtractor(storage, Config{},
		WithRunner(runner),
		WithPageCounter(func(string) (int, error) { return 2, nil }),
		WithLogger(quietLogger()),
	)

	if text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "scan.pdf", StoragePath: "k1"}); text != "\nsecond" {
		t.Fatalf("expected an empty line for the failed page, got %q", text)
	}
}

func TestExtractPDFPageCountFailureDegradesToEmpty(t *testing.T) {
	storage := &storageFake{objects: map[string][]byte{"k1": []byte("garbage")}}
	runner := &runnerFake{}
	e := NewExtractor(storage, Config{},
		WithRunner(runner),
		WithPageCounter(func(string) (int, error) { return 0, errors.New("corrupt xref") }),
		WithLogger(quietLogger()),
	)

	if text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "bad.pdf", StoragePath: "k1"}); text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestExtractMissingObjectDegradesToEmpty(t *testing.T) {
	e := NewExtractor(&storageFake{objects: map[string][]byte{}}, Config{}, WithRunner(&runnerFake{}), WithLogger(quietLogger()))

	if text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "gone.pdf", StoragePath: "missing"}); text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestExtractUnsupportedKind(t *testing.T) {
	runner := &runnerFake{}
	e := NewExtractor(&storageFake{}, Config{}, WithRunner(runner), WithLogger(quietLogger()))

	if text := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "notes.txt"}); text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestPrepareKeepsAspectRatio(t *testing.T) {
	out := prepare(image.NewRGBA(image.Rect(0, 0, 300, 50)), 900)
	if got := out.Bounds().Size(); got != (image.Point{X: 900, Y: 150}) {
		t.Fatalf("expected 900x150, got %v", got)
	}
}

// textPDF builds a one-page PDF whose text layer is exactly text.
func textPDF(t *testing.T, text string) []byte {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFTextLayerThreshold(t *testing.T) {
	const layer = "INV-1001 Acme Corp Total 42.50"
	if len(layer) != 30 {
		t.Fatalf("fixture must be 30 characters, got %d", len(layer))
	}

	cases := []struct {
		name    string
		text    string
		wantOCR bool
	}{
		{"thirty characters trusted", layer, false},
		{"twenty nine characters falls back", layer[:29], true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := &storageFake{objects: map[string][]byte{"k1": textPDF(t, tc.text)}}
			runner := &runnerFake{}
			counted := 0
			e := NewExtractor(storage, Config{},
				WithRunner(runner),
				WithPageCounter(func(string) (int, error) {
					counted++
					return 1, nil
				}),
				WithLogger(quietLogger()),
			)

			got := e.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "invoice.pdf", StoragePath: "k1"})
			if tc.wantOCR {
				if len(runner.calls) != 2 || counted != 1 {
					t.Fatalf("expected pdftoppm and tesseract, got %v (page counts %d)", runner.calls, counted)
				}
				if got != "Total: 12.00" {
					t.Fatalf("expected OCR text, got %q", got)
				}
				return
			}
			if len(runner.calls) != 0 || counted != 0 {
				t.Fatalf("text layer must skip OCR, got %v (page counts %d)", runner.calls, counted)
			}
			if strings.TrimSpace(got) != tc.text {
				t.Fatalf("expected text layer %q, got %q", tc.text, got)
			}
		})
	}
}
