package rag

// Answer is the structured response for one question.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Stats     TechStats  `json:"technical_stats"`
}

// Citation backs one chunk used for the answer. SimilarityScore is the
// normalized embedding similarity as a percentage in [0,100], rounded to one
// decimal. It measures closeness in embedding space, not whether the chunk
// answers the question.
type Citation struct {
	ChunkID         int     `json:"chunk_id"`
	Source          string  `json:"source"`
	SimilarityScore float64 `json:"similarity_score"`
	Page            *int    `json:"page,omitempty"`
	ContentPreview  string  `json:"content_preview,omitempty"`
}

// TechStats reports what the pipeline did for one query. All *SimilarityScore
// fields are percentages over the chunks used for the answer.
type TechStats struct {
	ChunksRetrievedInitial      int      `json:"chunks_retrieved_initial"`
	ChunksAfterSimilarityFilter int      `json:"chunks_after_similarity_filter"`
	ChunksUsedForAnswer         int      `json:"chunks_used_for_answer"`
	AvgSimilarityScore          float64  `json:"avg_similarity_score"`
	MaxSimilarityScore          float64  `json:"max_similarity_score"`
	MinSimilarityScore          float64  `json:"min_similarity_score"`
	SimilarityThresholdApplied  *float64 `json:"similarity_threshold_applied,omitempty"`
	EmbeddingDimension          int      `json:"embedding_dimension"`
	DistanceMetric              string   `json:"distance_metric"`
}
