package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"multi-industry-rag/internal/config"
	"multi-industry-rag/internal/index"
)

// fakeEmbedder maps text to a letter-frequency vector. Identical text
// always produces an identical vector, mirroring the determinism of the
// real embedding model.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, 27)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		} else {
			vec[26]++
		}
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.EmbedText(ctx, t)
		vectors[i] = v
	}
	return vectors, nil
}

type fakeGenerator struct {
	err         error
	lastContext string
	lastInd     string
}

func (f *fakeGenerator) GenerateAnswer(ctx context.Context, industry, contextText, question string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastContext = contextText
	f.lastInd = industry
	return "generated answer for " + industry, nil
}

type fakeExtractor struct {
	pages  []PageText
	err    error
	called bool
}

func (f *fakeExtractor) ExtractPages(path string) ([]PageText, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		IndexPath:      filepath.Join(t.TempDir(), "index.db"),
		TempDir:        t.TempDir(),
		TopK:           3,
		MaxQuestionLen: 500,
	}
}

func newTestService(t *testing.T, cfg *config.Config, ex *fakeExtractor, em *fakeEmbedder, gen *fakeGenerator) *RAGService {
	t.Helper()
	svc := NewRAGService(cfg, ex, em, gen)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func pdfBody() *strings.Reader {
	return strings.NewReader("%PDF-1.4 fake body")
}

func TestIngestInvalidIndustry(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "plumbing", "doc.pdf", pdfBody())
	if err == nil {
		t.Fatal("expected error for invalid industry")
	}
	if ex.called {
		t.Error("extractor was called despite invalid industry")
	}
	if index.Exists(cfg.IndexPath) {
		t.Error("index was created despite invalid industry")
	}
}

func TestIngestRejectsNonPDF(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "legal", "notes.txt", pdfBody())
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("error = %v, want ErrInvalidFileType", err)
	}
	if ex.called {
		t.Error("extractor was called for non-PDF filename")
	}
	if index.Exists(cfg.IndexPath) {
		t.Error("index was created for rejected upload")
	}
}

func TestIngestSuccess(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{pages: []PageText{
		{Page: 1, Text: "refrigerant charging procedures"},
		{Page: 2, Text: "thermostat wiring diagrams"},
	}}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})

	resp, err := svc.Ingest(context.Background(), "HVAC", "manual.pdf", pdfBody())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.Pages != 2 {
		t.Errorf("Pages = %d, want 2", resp.Pages)
	}
	if resp.Industry != "hvac" {
		t.Errorf("Industry = %q, want hvac (canonical lowercase)", resp.Industry)
	}
	if !strings.Contains(resp.Message, "manual.pdf") {
		t.Errorf("Message = %q, want filename mentioned", resp.Message)
	}
	if !index.Exists(cfg.IndexPath) {
		t.Error("index file was not created")
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{err: errors.New("corrupt xref table")}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "legal", "broken.pdf", pdfBody())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("error = %v, want ErrExtractionFailed", err)
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: "x"}}}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{err: errors.New("model unavailable")}, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "legal", "doc.pdf", pdfBody())
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestIngestEmbeddingTimeout(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: "x"}}}
	em := &fakeEmbedder{err: fmt.Errorf("call failed: %w", context.DeadlineExceeded)}
	svc := newTestService(t, cfg, ex, em, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "legal", "doc.pdf", pdfBody())
	if !errors.Is(err, ErrDependencyTimeout) {
		t.Fatalf("error = %v, want ErrDependencyTimeout", err)
	}
}

func TestIngestTempFileCleanup(t *testing.T) {
	cfg := testConfig(t)

	assertTempEmpty := func(when string) {
		entries, err := os.ReadDir(cfg.TempDir)
		if err != nil {
			t.Fatalf("reading temp dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("temp dir not empty %s: %d entries", when, len(entries))
		}
	}

	// Success path
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: "x"}}}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})
	if _, err := svc.Ingest(context.Background(), "legal", "doc.pdf", pdfBody()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	assertTempEmpty("after successful ingest")

	// Failure path
	exFail := &fakeExtractor{err: errors.New("unparsable")}
	svcFail := newTestService(t, cfg, exFail, &fakeEmbedder{}, &fakeGenerator{})
	if _, err := svcFail.Ingest(context.Background(), "legal", "doc.pdf", pdfBody()); err == nil {
		t.Fatal("expected extraction failure")
	}
	assertTempEmpty("after failed ingest")
}

func TestAskBeforeIngest(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, &fakeExtractor{}, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Ask(context.Background(), "what is a lease?", "legal")
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("error = %v, want ErrIndexNotFound", err)
	}
}

func TestAskValidation(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, &fakeExtractor{}, &fakeEmbedder{}, &fakeGenerator{})
	ctx := context.Background()

	if _, err := svc.Ask(ctx, "anything", "crypto"); err == nil {
		t.Error("expected error for invalid industry")
	}
	if _, err := svc.Ask(ctx, "   ", "legal"); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("error = %v, want ErrEmptyQuestion", err)
	}
	long := strings.Repeat("q", 501)
	if _, err := svc.Ask(ctx, long, "legal"); !errors.Is(err, ErrQuestionTooLong) {
		t.Errorf("error = %v, want ErrQuestionTooLong", err)
	}
	// Exactly at the limit is accepted (fails later on the missing index)
	atLimit := strings.Repeat("q", 500)
	if _, err := svc.Ask(ctx, atLimit, "legal"); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("error = %v, want ErrIndexNotFound for 500-char question", err)
	}
}

func TestIngestThenAskRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	pageText := "the boiler pressure relief valve must open below two bar"
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: pageText}}}
	gen := &fakeGenerator{}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, gen)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "hvac", "boilers.pdf", pdfBody()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Querying with the exact ingested content must retrieve the chunk
	resp, err := svc.Ask(ctx, pageText, "hvac")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.SourcesFound < 1 {
		t.Fatalf("SourcesFound = %d, want >= 1", resp.SourcesFound)
	}
	if resp.IndustryUsed != "hvac" {
		t.Errorf("IndustryUsed = %q, want hvac", resp.IndustryUsed)
	}
	if resp.Answer != "generated answer for hvac" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if !strings.Contains(gen.lastContext, pageText) {
		t.Error("retrieved context does not contain the ingested page text")
	}
}

func TestAskCrossIndustryIsolation(t *testing.T) {
	cfg := testConfig(t)
	pageText := "standard residential lease termination requires thirty days notice"
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: pageText}}}
	gen := &fakeGenerator{}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, gen)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "legal", "leases.pdf", pdfBody()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Same question against a different industry must retrieve nothing,
	// even though the text itself would match.
	resp, err := svc.Ask(ctx, pageText, "finance")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.SourcesFound != 0 {
		t.Fatalf("SourcesFound = %d, want 0 for cross-industry query", resp.SourcesFound)
	}
	want := fmt.Sprintf(noDocumentsMessage, "finance")
	if resp.Answer != want {
		t.Errorf("Answer = %q, want %q", resp.Answer, want)
	}
	if gen.lastContext != "" {
		t.Error("generator was called despite zero retrieved chunks")
	}
}

func TestAskGenerationFailure(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExtractor{pages: []PageText{{Page: 1, Text: "claim filing deadlines"}}}
	gen := &fakeGenerator{err: errors.New("api down")}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, gen)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "finance", "claims.pdf", pdfBody()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	_, err := svc.Ask(ctx, "claim filing deadlines", "finance")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
}

func TestAskTopKLimit(t *testing.T) {
	cfg := testConfig(t)
	var pages []PageText
	for i := 1; i <= 6; i++ {
		pages = append(pages, PageText{Page: i, Text: fmt.Sprintf("hvac maintenance topic %d", i)})
	}
	ex := &fakeExtractor{pages: pages}
	svc := newTestService(t, cfg, ex, &fakeEmbedder{}, &fakeGenerator{})
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "hvac", "manual.pdf", pdfBody()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	resp, err := svc.Ask(ctx, "hvac maintenance topic", "hvac")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.SourcesFound != cfg.TopK {
		t.Errorf("SourcesFound = %d, want top-k = %d", resp.SourcesFound, cfg.TopK)
	}
}
