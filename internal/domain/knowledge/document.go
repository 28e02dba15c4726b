package knowledge

type Document struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title,omitempty" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Category  string    `json:"category" yaml:"category"`
	Tags      []string  `json:"tags" yaml:"tags"`
	Source    string    `json:"source,omitempty" yaml:"source"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`
}

type RetrievalResult struct {
	Document      Document `json:"document"`
	LexicalScore  float64  `json:"lexicalScore"`
	DenseScore    float64  `json:"denseScore"`
	CombinedScore float64  `json:"combinedScore"`
}

// Label is the source label shown next to a retrieved passage.
func (d Document) Label() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.Source != "":
		return d.Source
	case d.Category != "":
		return d.Category
	default:
		return d.ID
	}
}
