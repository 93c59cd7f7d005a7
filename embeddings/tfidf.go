package embeddings

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"
)

// TFIDFEmbedder is an in-process TF-IDF embedder. Vocabulary and document frequencies
// come from the corpus passed to Fit; terms never seen in the corpus are ignored.
type TFIDFEmbedder struct {
	config     *EmbeddingConfig
	mu         sync.RWMutex
	vocabulary map[string]int
	docCounts  map[string]int
	totalDocs  int
}

// NewTFIDFEmbedder creates an unfitted embedder.
func NewTFIDFEmbedder(config *EmbeddingConfig) *TFIDFEmbedder {
	if config == nil {
		config = LocalConfig()
	}
	return &TFIDFEmbedder{
		config:     config,
		vocabulary: make(map[string]int),
		docCounts:  make(map[string]int),
	}
}

var (
	_ Embedder = (*TFIDFEmbedder)(nil)
	_ Fitter   = (*TFIDFEmbedder)(nil)
)

// Fit replaces the corpus statistics with those of texts.
func (m *TFIDFEmbedder) Fit(texts []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vocabulary = make(map[string]int)
	m.docCounts = make(map[string]int)
	m.totalDocs = 0
	for _, text := range texts {
		m.addDocument(text)
	}
}

// AddDocument adds one document to the corpus statistics.
func (m *TFIDFEmbedder) AddDocument(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDocument(text)
}

func (m *TFIDFEmbedder) addDocument(text string) {
	unique := make(map[string]bool)
	for _, token := range tokenize(text) {
		unique[token] = true
		if _, ok := m.vocabulary[token]; !ok {
			m.vocabulary[token] = len(m.vocabulary)
		}
	}
	for token := range unique {
		m.docCounts[token]++
	}
	m.totalDocs++
}

// EmbedText converts text to an L2-normalized TF-IDF vector with smoothed IDF.
func (m *TFIDFEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf := make(map[string]int)
	for _, token := range tokenize(text) {
		tf[token]++
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	vector := make([]float32, m.config.Dimension)
	for token, freq := range tf {
		idx, ok := m.vocabulary[token]
		if !ok || idx >= len(vector) {
			continue
		}
		idf := math.Log(float64(1+m.totalDocs)/float64(1+m.docCounts[token])) + 1
		vector[idx] = float32(float64(freq) * idf)
	}
	normalize(vector)
	return vector, nil
}

// VocabularySize returns the number of distinct corpus terms.
func (m *TFIDFEmbedder) VocabularySize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vocabulary)
}

// tokenize lowercases text and splits it on anything that is not a letter or digit,
// dropping single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func normalize(vector []float32) {
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
}
