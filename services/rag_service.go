package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"multi-industry-rag/internal/ai"
	"multi-industry-rag/internal/config"
	"multi-industry-rag/internal/index"
	"multi-industry-rag/internal/logger"
	"multi-industry-rag/models"
)

// Pipeline failure kinds. Routes map these onto HTTP statuses; the wrapped
// detail is for logs only and is never returned to callers.
var (
	ErrInvalidFileType      = errors.New("only PDF files are allowed")
	ErrEmptyQuestion        = errors.New("question cannot be empty")
	ErrQuestionTooLong      = errors.New("question too long")
	ErrIndexNotFound        = errors.New("no documents ingested yet")
	ErrExtractionFailed     = errors.New("failed to read PDF file")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrIndexWriteFailed     = errors.New("failed to store documents in index")
	ErrSearchFailed         = errors.New("index search failed")
	ErrGenerationFailed     = errors.New("failed to generate answer")
	ErrDependencyTimeout    = errors.New("upstream dependency timed out")
)

const noDocumentsMessage = "No documents found for %s. Please upload documents first."

// RAGService orchestrates the ingestion and query pipelines over the
// extractor, the embedding provider, the vector index and the generator.
type RAGService struct {
	cfg       *config.Config
	extractor PageExtractor
	embedder  ai.Embedder
	generator ai.Generator

	mu    sync.Mutex
	store *index.Store
}

func NewRAGService(cfg *config.Config, extractor PageExtractor, embedder ai.Embedder, generator ai.Generator) *RAGService {
	return &RAGService{
		cfg:       cfg,
		extractor: extractor,
		embedder:  embedder,
		generator: generator,
	}
}

// Close releases the index handle if one was opened.
func (s *RAGService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// openStore opens the index at its fixed path on first use. The index file
// is only created here, so querying before the first ingestion still sees
// a missing index.
func (s *RAGService) openStore() (*index.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	store, err := index.Open(s.cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

// Ingest runs the full ingestion pipeline: validate, spool the upload to a
// temp file, extract pages, tag, embed, append to the index. All-or-nothing;
// the temp file is removed on every exit path.
func (s *RAGService) Ingest(ctx context.Context, industry, filename string, file io.Reader) (*models.IngestResponse, error) {
	tag, err := models.NormalizeIndustry(industry)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, filename)
	}

	logger.Info("Starting ingestion", "file", filename, "industry", tag)

	tmp, err := os.CreateTemp(s.cfg.TempDir, "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %v", ErrExtractionFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: saving upload: %v", ErrExtractionFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: saving upload: %v", ErrExtractionFailed, err)
	}

	pages, err := s.extractor.ExtractPages(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	logger.Info("Extracted pages from PDF", "file", filename, "pages", len(pages))

	chunks := make([]models.DocumentChunk, len(pages))
	texts := make([]string, len(pages))
	for i, page := range pages {
		chunks[i] = models.DocumentChunk{
			ID:       uuid.NewString(),
			Text:     page.Text,
			Industry: tag,
			Page:     page.Page,
			Source:   filename,
		}
		texts[i] = page.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, classifyDependencyErr(err, ErrEmbeddingUnavailable)
	}

	store, err := s.openStore()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}

	logger.Info("Ingestion complete", "file", filename, "industry", tag, "chunks", len(chunks))

	return &models.IngestResponse{
		Message:  fmt.Sprintf("Successfully added %s to %s storage", filename, tag),
		Pages:    len(chunks),
		Industry: tag,
	}, nil
}

// Ask runs the query pipeline: validate, embed the question with the same
// model used at ingestion, search the industry-filtered top-k, and generate
// a grounded answer. Zero retrieved chunks is a normal outcome, not an error.
func (s *RAGService) Ask(ctx context.Context, question, industry string) (*models.AskResponse, error) {
	tag, err := models.NormalizeIndustry(industry)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > s.cfg.MaxQuestionLen {
		return nil, fmt.Errorf("%w: must be under %d characters", ErrQuestionTooLong, s.cfg.MaxQuestionLen)
	}

	if !index.Exists(s.cfg.IndexPath) {
		return nil, ErrIndexNotFound
	}

	logger.Info("Processing question", "industry", tag, "question_len", len(question))

	vector, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, classifyDependencyErr(err, ErrEmbeddingUnavailable)
	}

	store, err := s.openStore()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	hits, err := store.Search(ctx, vector, tag, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(hits) == 0 {
		logger.Warn("No documents found for industry", "industry", tag)
		return &models.AskResponse{
			Answer:       fmt.Sprintf(noDocumentsMessage, tag),
			IndustryUsed: tag,
			SourcesFound: 0,
		}, nil
	}

	contextParts := make([]string, len(hits))
	for i, hit := range hits {
		contextParts[i] = hit.Text
	}
	contextText := strings.Join(contextParts, "\n\n")

	answer, err := s.generator.GenerateAnswer(ctx, tag, contextText, question)
	if err != nil {
		return nil, classifyDependencyErr(err, ErrGenerationFailed)
	}

	logger.Info("Answer generated", "industry", tag, "sources", len(hits))

	return &models.AskResponse{
		Answer:       answer,
		IndustryUsed: tag,
		SourcesFound: len(hits),
	}, nil
}

// classifyDependencyErr distinguishes exhausted timeouts from other
// dependency failures so routes can report a distinct error code.
func classifyDependencyErr(err error, kind error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDependencyTimeout, err)
	}
	return fmt.Errorf("%w: %v", kind, err)
}
