package domain

// Embedding is a vector representation of text.
type Embedding struct {
	Vector     []float64 `json:"vector"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// NewEmbedding builds an embedding with its dimensionality filled in.
func NewEmbedding(vec []float64, model string) Embedding {
	return Embedding{Vector: vec, Model: model, Dimensions: len(vec)}
}

// SimilarityCandidate is a stored vector considered by similarity search.
type SimilarityCandidate struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
}

// SimilarityMatch is a candidate at or above the similarity threshold.
type SimilarityMatch struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// EmbeddableInitiative is initiative text with an optional precomputed vector.
type EmbeddableInitiative struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// Validate checks if the initiative meets all requirements.
func (e *EmbeddableInitiative) Validate() error { return validate.Struct(e) }

// Text is the string embedded for duplicate detection.
func (e *EmbeddableInitiative) Text() string { return e.Title + "\n" + e.Description }

// DuplicatePair is two initiatives whose similarity meets the duplicate threshold.
type DuplicatePair struct {
	FirstID    string  `json:"first_id"`
	SecondID   string  `json:"second_id"`
	Similarity float64 `json:"similarity"`
}
