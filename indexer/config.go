package indexer

// Config declares the set of named indexes a Manager maintains.
// Zero or more of each kind may be configured.
type Config struct {
	BTrees     []BTreeConfig
	FullTexts  []FullTextConfig
	Spatials   []SpatialConfig
	Composites []CompositeConfig
}

// BTreeConfig declares one ordered index.
type BTreeConfig struct {
	// Name is the index name used in queries.
	Name string
	// KeyField is the document field supplying the key.
	KeyField string
	// Order is the B-tree minimum degree; <= 1 selects the default.
	Order int
	// Less overrides the comparator. Nil selects btree.DefaultLess
	// (numbers numerically, strings lexically).
	Less func(a, b any) bool
}

// FullTextConfig declares one full-text index.
type FullTextConfig struct {
	Name string
	// Fields are the document fields whose text is tokenized and indexed.
	Fields []string
}

// CoordinateMapping names the document fields supplying each bounding-box
// coordinate.
type CoordinateMapping struct {
	MinX string
	MinY string
	MaxX string
	MaxY string
}

// SpatialConfig declares one spatial index.
type SpatialConfig struct {
	Name   string
	Coords CoordinateMapping
	// MaxEntries is the R-tree node capacity; <= 0 selects the default.
	MaxEntries int
}

// CompositeConfig declares one composite index.
type CompositeConfig struct {
	Name   string
	Fields []string
	Unique bool
	Sparse bool
}

// LineSpanCoords maps a node's line span onto the plane: X covers the
// start line, Y the end line. The common mapping for "what overlaps this
// region of the file" queries.
func LineSpanCoords() CoordinateMapping {
	return CoordinateMapping{
		MinX: "start_line",
		MinY: "start_line",
		MaxX: "end_line",
		MaxY: "end_line",
	}
}
