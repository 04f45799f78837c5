// Package vectorstore persists embedded chunks and answers similarity
// searches scoped to a single material.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Metadata is the tenant tag attached to every stored chunk.
type Metadata struct {
	MaterialID int64  `json:"material_id"`
	CourseID   int64  `json:"course_id"`
	ChapterID  int64  `json:"chapter_id"`
	Source     string `json:"source"`
}

// Record is one chunk with its embedding. Records are immutable once added.
type Record struct {
	ID        uuid.UUID
	Content   string
	Metadata  Metadata
	Embedding []float32
	CreatedAt time.Time
}

// Scored is a search hit with its cosine similarity to the query.
type Scored struct {
	Record
	Score float64
}

// MaterialStats summarizes what is stored for one material.
type MaterialStats struct {
	MaterialID int64
	Chunks     int
	LastAdded  time.Time
}

// Store is a vector database that can filter by material before ranking.
type Store interface {
	// Add stores a single record.
	Add(ctx context.Context, rec Record) error

	// Search returns up to k records belonging to materialID, most similar
	// first. Records of other materials are never considered.
	Search(ctx context.Context, materialID int64, query []float32, k int) ([]Scored, error)

	// DeleteMaterial removes every record of materialID and reports how
	// many were removed.
	DeleteMaterial(ctx context.Context, materialID int64) (int, error)

	// Stats lists per-material record counts ordered by material id.
	Stats(ctx context.Context) ([]MaterialStats, error)
}

// ErrDimensionMismatch is returned when a query and a stored vector differ
// in length, usually because the embedding model changed between ingestion
// and retrieval.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

func validate(rec Record) error {
	if rec.ID == uuid.Nil {
		return fmt.Errorf("record id is required")
	}
	if rec.Metadata.MaterialID <= 0 {
		return fmt.Errorf("record %s: material id must be positive", rec.ID)
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s: empty embedding", rec.ID)
	}
	return nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
