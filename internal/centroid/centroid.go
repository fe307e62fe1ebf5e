// Package centroid implements the decay-weighted vector aggregation that
// summarizes an issue's failure-reason embeddings.
//
// A centroid keeps an un-normalized weighted sum of unit embeddings (Base)
// and the decayed sum of contribution weights (Weight). Decay is applied
// lazily whenever a centroid is touched, relative to UpdatedAt, so idle
// issues cost nothing.
package centroid

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrDimensionMismatch = errors.New("centroid: dimension mismatch")
	ErrEmptyEmbedding    = errors.New("centroid: empty embedding")
	ErrNoCentroids       = errors.New("centroid: nothing to merge")
)

type Centroid struct {
	Base      []float64 `json:"base"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Operation string

const (
	Add    Operation = "add"
	Remove Operation = "remove"
)

// Contribution is one evaluation result's share of a centroid.
type Contribution struct {
	Embedding []float64
	Type      string // evaluation type, keys Aggregator.BaseWeights
	CreatedAt time.Time
}

// DefaultBaseWeights by evaluation type.
var DefaultBaseWeights = map[string]float64{
	"human": 1.0,
	"rule":  0.8,
	"llm":   0.6,
}

// Aggregator carries the tunables of centroid maintenance.
type Aggregator struct {
	HalfLife      time.Duration
	BaseWeights   map[string]float64
	DefaultWeight float64 // used for types missing from BaseWeights; 0 means 1.0
}

func New() Centroid {
	return Centroid{Base: []float64{}}
}

func (c Centroid) IsEmpty() bool {
	return len(c.Base) == 0
}

// Update returns c with the contribution added or removed at time now.
// The input centroid is never mutated.
func (a Aggregator) Update(c Centroid, in Contribution, op Operation, now time.Time) (Centroid, error) {
	if len(in.Embedding) == 0 {
		return Centroid{}, ErrEmptyEmbedding
	}

	dims := len(in.Embedding)
	if !c.IsEmpty() && len(c.Base) != dims {
		return Centroid{}, fmt.Errorf("%w: centroid has %d, embedding has %d", ErrDimensionMismatch, len(c.Base), dims)
	}

	sign := 1.0
	if op == Remove {
		sign = -1.0
	}

	lambda := a.sinceFactor(c.UpdatedAt, now)
	weight := a.weightFor(in.Type) * a.factor(now.Sub(in.CreatedAt))
	unit := Normalize(in.Embedding)

	base := make([]float64, dims)
	for i := 0; i < dims; i++ {
		prev := 0.0
		if !c.IsEmpty() {
			prev = c.Base[i]
		}
		base[i] = prev*lambda + sign*weight*unit[i]
	}

	total := c.Weight*lambda + sign*weight
	if total < 0 {
		total = 0
	}

	return Centroid{Base: base, Weight: total, UpdatedAt: latest(c.UpdatedAt, now)}, nil
}

// Decay returns c scaled to time now.
func (a Aggregator) Decay(c Centroid, now time.Time) Centroid {
	lambda := a.sinceFactor(c.UpdatedAt, now)
	base := make([]float64, len(c.Base))
	for i, v := range c.Base {
		base[i] = v * lambda
	}
	return Centroid{Base: base, Weight: c.Weight * lambda, UpdatedAt: latest(c.UpdatedAt, now)}
}

// Merge decays every centroid to now and sums them. Empty centroids
// contribute nothing; non-empty ones must share a dimensionality.
func (a Aggregator) Merge(cs []Centroid, now time.Time) (Centroid, error) {
	if len(cs) == 0 {
		return Centroid{}, ErrNoCentroids
	}

	dims := 0
	for _, c := range cs {
		if c.IsEmpty() {
			continue
		}
		if dims == 0 {
			dims = len(c.Base)
			continue
		}
		if len(c.Base) != dims {
			return Centroid{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, dims, len(c.Base))
		}
	}

	out := Centroid{Base: make([]float64, dims), UpdatedAt: now}
	for _, c := range cs {
		if c.IsEmpty() {
			continue
		}
		lambda := a.sinceFactor(c.UpdatedAt, now)
		for i := 0; i < dims; i++ {
			out.Base[i] += c.Base[i] * lambda
		}
		out.Weight += c.Weight * lambda
	}
	return out, nil
}

// Embed is the unit-normalized base used for index storage and search.
func Embed(c Centroid) []float64 {
	out := make([]float64, len(c.Base))
	copy(out, Normalize(c.Base))
	return out
}

// Normalize scales v to unit length. Zero and empty vectors are returned as is.
func Normalize(v []float64) []float64 {
	norm := Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func Norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Cosine similarity of a and b; 0 when either is zero.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	dot, na, nb := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func (a Aggregator) weightFor(evaluationType string) float64 {
	if w, ok := a.BaseWeights[evaluationType]; ok {
		return w
	}
	if a.DefaultWeight > 0 {
		return a.DefaultWeight
	}
	return 1.0
}

// sinceFactor is the decay from last to now. A zero last means the
// centroid never recorded a timestamp and is left as is.
func (a Aggregator) sinceFactor(last, now time.Time) float64 {
	if last.IsZero() {
		return 1
	}
	return a.factor(now.Sub(last))
}

func (a Aggregator) factor(dt time.Duration) float64 {
	if a.HalfLife <= 0 || dt <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(dt)/float64(a.HalfLife))
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
