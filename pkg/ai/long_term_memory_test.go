package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sirius/pkg/database/memstore"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto the axes apple, banana, cherry
type keywordEmbedder struct {
	calls  int
	inputs [][]string
}

func (k *keywordEmbedder) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	k.calls++
	req := conv.Convert()
	inputs := req.Input.([]string)
	k.inputs = append(k.inputs, inputs)

	resp := openai.EmbeddingResponse{}
	for i, text := range inputs {
		text = strings.ToLower(text)
		v := []float32{0, 0, 0}
		for axis, word := range []string{"apple", "banana", "cherry"} {
			if strings.Contains(text, word) {
				v[axis] = 1
			}
		}
		resp.Data = append(resp.Data, openai.Embedding{Embedding: v, Index: i})
	}
	return resp, nil
}

func TestMemory_RememberAndRecollect(t *testing.T) {
	embedder := &keywordEmbedder{}
	memory := NewMemory(embedder, memstore.New(), WithChunking(20, 0))

	text := "apple pie recipe\n\nbanana bread loaf\n\ncherry tart slice"
	stored, err := memory.Remember(context.Background(), text, DocumentTypeText, "recipes.txt")
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.Equal(t, []string{"apple pie recipe", "banana bread loaf", "cherry tart slice"}, chunkTexts(stored))
	assert.Len(t, stored.ContentHash, 64)

	recalled, err := memory.Recollect(context.Background(), stored, "Apple", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple pie recipe"}, recalled)

	recalled, err = memory.Recollect(context.Background(), stored, "durian", 0)
	require.NoError(t, err)
	assert.Empty(t, recalled)

	recalled, err = memory.Recollect(context.Background(), stored, "apple", 1.5)
	require.NoError(t, err)
	assert.Equal(t, "apple pie recipe", recalled[0], "nearest chunk comes first")
	assert.Len(t, recalled, 3)
}

func TestMemory_RememberDeduplicates(t *testing.T) {
	embedder := &keywordEmbedder{}
	memory := NewMemory(embedder, memstore.New())

	first, err := memory.Remember(context.Background(), "apple", DocumentTypeText, "a")
	require.NoError(t, err)
	second, err := memory.Remember(context.Background(), "apple", DocumentTypeText, "b")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a", second.Source)
	assert.Equal(t, 1, embedder.calls)
}

func TestMemory_RememberFromURL_HTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>ignored</title><script>var banana = 1;</script></head>
			<body><h1>Cherry</h1>
			<p>orchard   notes</p></body></html>`))
	}))
	defer server.Close()

	embedder := &keywordEmbedder{}
	memory := NewMemory(embedder, memstore.New())

	stored, err := memory.RememberFromURL(context.Background(), server.URL, DocumentTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, server.URL, stored.Source)
	assert.Equal(t, []string{"Cherry orchard notes"}, chunkTexts(stored))
}

func TestPlainText_CSV(t *testing.T) {
	text, err := plainText("name,colour\napple,red\nbanana,yellow\n", DocumentTypeCSV)
	require.NoError(t, err)
	assert.Equal(t, "name: apple\ncolour: red\n\nname: banana\ncolour: yellow\n\n", text)
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{name: "fits in one chunk", text: "short text", size: 100, want: []string{"short text"}},
		{name: "breaks on words", text: "one two three four", size: 9, want: []string{"one two", "three", "four"}},
		{name: "hard cut without separators", text: "abcdefghij", size: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "overlap repeats the tail", text: "abcdefghij", size: 4, overlap: 2, want: []string{"abcd", "cdef", "efgh", "ghij"}},
		{name: "empty", text: "   ", size: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitText(tt.text, tt.size, tt.overlap))
		})
	}
}

func chunkTexts(m *LongTermMemory) []string {
	out := make([]string, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Text
	}
	return out
}
