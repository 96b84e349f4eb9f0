package knowledge

// Metadata keys attached to every indexed chunk.
const (
	MetaSource      = "source"
	MetaDocType     = "doc_type"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaCharCount   = "char_count"
)

// Match is a single nearest-neighbor result. Distance is the index's raw
// metric value (ascending order means more similar).
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// IndexItem is one entry handed to the underlying nearest-neighbor index.
type IndexItem struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter restricting results. Multiple calls
// combine with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
