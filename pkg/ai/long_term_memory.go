package ai

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"sirius/pkg/common"
	"sirius/pkg/database"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DocumentType selects how remembered content is turned into plain text
type DocumentType string

const (
	DocumentTypeText     DocumentType = "TEXT"
	DocumentTypeMarkdown DocumentType = "MARKDOWN"
	DocumentTypeCSV      DocumentType = "CSV"
	DocumentTypeHTML     DocumentType = "HTML"
)

const (
	DefaultChunkSize     = 2000
	DefaultChunkOverlap  = 200
	DefaultMaxL2Distance = 0.25

	embeddingBatchSize = 100
)

// Embedder is implemented by *openai.Client
type Embedder interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// MemoryChunk is one slice of a remembered source with its embedding
type MemoryChunk struct {
	Text      string    `bson:"text"`
	Embedding []float64 `bson:"embedding"`
}

// LongTermMemory is an embedded text source
type LongTermMemory struct {
	database.Document `bson:",inline"`

	Source       string        `bson:"source"`
	DocumentType DocumentType  `bson:"document_type"`
	ContentHash  string        `bson:"content_hash"`
	ChunkSize    int           `bson:"chunk_size"`
	ChunkOverlap int           `bson:"chunk_overlap"`
	Size         int           `bson:"size"`
	Chunks       []MemoryChunk `bson:"chunks"`
}

// Memory remembers and recollects sources
type Memory struct {
	embedder     Embedder
	memories     *database.Collection[LongTermMemory, *LongTermMemory]
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// MemoryOption configures a Memory
type MemoryOption func(*Memory)

// WithChunking overrides the chunk size and overlap, both counted in characters
func WithChunking(size, overlap int) MemoryOption {
	return func(m *Memory) {
		m.chunkSize = size
		m.chunkOverlap = overlap
	}
}

func NewMemory(embedder Embedder, store database.Store, opts ...MemoryOption) *Memory {
	m := &Memory{
		embedder:     embedder,
		memories:     database.NewCollection[LongTermMemory](store),
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       logger.Named("memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Remember embeds and stores content. Content that was remembered before is returned as is.
func (m *Memory) Remember(ctx context.Context, content string, documentType DocumentType, source string) (*LongTermMemory, error) {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	existing, err := m.memories.FindByQuery(ctx, &LongTermMemory{ContentHash: hash}, 2)
	if err != nil {
		return nil, err
	}
	switch len(existing) {
	case 0:
	case 1:
		m.logger.Debug("Memory already exists", zap.String("content_hash", hash))
		return existing[0], nil
	default:
		return nil, apperrors.NewDuplicateFound("long term memory", hash, len(existing))
	}

	text, err := plainText(content, documentType)
	if err != nil {
		return nil, err
	}
	pieces := splitText(text, m.chunkSize, m.chunkOverlap)

	vectors, err := m.embed(ctx, pieces)
	if err != nil {
		return nil, err
	}

	memory := &LongTermMemory{
		Source:       source,
		DocumentType: documentType,
		ContentHash:  hash,
		ChunkSize:    m.chunkSize,
		ChunkOverlap: m.chunkOverlap,
		Size:         len(content),
		Chunks:       make([]MemoryChunk, len(pieces)),
	}
	for i, piece := range pieces {
		memory.Chunks[i] = MemoryChunk{Text: piece, Embedding: vectors[i]}
	}

	if err := m.memories.Save(ctx, memory); err != nil {
		return nil, err
	}
	m.logger.Info("Memory stored",
		zap.String("source", source),
		zap.String("document_type", string(documentType)),
		zap.Int("chunks", len(pieces)),
	)
	return memory, nil
}

// RememberFromURL downloads url and remembers its content
func (m *Memory) RememberFromURL(ctx context.Context, url string, documentType DocumentType) (*LongTermMemory, error) {
	path, err := common.DownloadFileFromURL(ctx, url)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded file: %w", err)
	}
	return m.Remember(ctx, string(content), documentType, url)
}

// Recollect returns the chunks of memory within maxL2Distance of query, nearest first.
// A non-positive distance uses DefaultMaxL2Distance.
func (m *Memory) Recollect(ctx context.Context, memory *LongTermMemory, query string, maxL2Distance float64) ([]string, error) {
	if maxL2Distance <= 0 {
		maxL2Distance = DefaultMaxL2Distance
	}

	vectors, err := m.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	target := vectors[0]

	type hit struct {
		text     string
		distance float64
	}
	var hits []hit
	for _, chunk := range memory.Chunks {
		if d := l2Distance(target, chunk.Embedding); d < maxL2Distance {
			hits = append(hits, hit{text: chunk.Text, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out, nil
}

func (m *Memory) embed(ctx context.Context, inputs []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += embeddingBatchSize {
		batch := inputs[start:min(start+embeddingBatchSize, len(inputs))]

		resp, err := m.embedder.CreateEmbeddings(ctx, openai.EmbeddingRequest{Input: batch, Model: openai.SmallEmbedding3})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, apperrors.NewSDKClientError(
				fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(resp.Data)), nil)
		}

		ordered := make([][]float64, len(batch))
		for _, e := range resp.Data {
			if e.Index < 0 || e.Index >= len(batch) {
				return nil, apperrors.NewSDKClientError(fmt.Sprintf("embedding index %d out of range", e.Index), nil)
			}
			v := make([]float64, len(e.Embedding))
			for i, x := range e.Embedding {
				v[i] = float64(x)
			}
			ordered[e.Index] = v
		}
		vectors = append(vectors, ordered...)
	}
	return vectors, nil
}

func l2Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func plainText(content string, documentType DocumentType) (string, error) {
	switch documentType {
	case DocumentTypeHTML:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse HTML: %w", err)
		}
		doc.Find("script, style, noscript, head").Remove()
		return strings.Join(strings.Fields(doc.Text()), " "), nil

	case DocumentTypeCSV:
		return csvText(content)

	case DocumentTypeText, DocumentTypeMarkdown:
		return content, nil

	default:
		return "", apperrors.NewOperationNotSupported("remember", fmt.Sprintf("unsupported document type %q", documentType))
	}
}

// csvText renders each row as "header: value" lines so chunks keep their column names
func csvText(content string) (string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read CSV header: %w", err)
	}

	var b strings.Builder
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read CSV: %w", err)
		}
		for i, value := range row {
			name := fmt.Sprintf("column_%d", i)
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			fmt.Fprintf(&b, "%s: %s\n", name, strings.TrimSpace(value))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

var separators = []string{"\n\n", "\n", " "}

// splitText cuts text into chunks of at most size runes, preferring paragraph, line and word
// boundaries. Consecutive chunks share up to overlap runes.
func splitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			window := string(runes[start:end])
			for _, sep := range separators {
				if i := strings.LastIndex(window, sep); i > 0 {
					if cut := len([]rune(window[:i])); cut > size/2 {
						end = start + cut
						break
					}
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
