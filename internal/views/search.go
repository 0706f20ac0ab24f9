package views

import (
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sahilm/fuzzy"

	"learnsync/internal/model"
)

// Field is one searchable text column of T.
type Field[T any] struct {
	Name   string
	Weight float64
	Text   func(T) string
}

var NoticeFields = []Field[model.Notice]{
	{Name: "title", Weight: 3, Text: func(n model.Notice) string { return n.Title }},
	{Name: "content", Weight: 2, Text: func(n model.Notice) string { return n.Content }},
	{Name: "publisher", Weight: 1, Text: func(n model.Notice) string { return n.Publisher }},
	{Name: "courseName", Weight: 1, Text: func(n model.Notice) string { return n.CourseName }},
}

var AssignmentFields = []Field[model.Assignment]{
	{Name: "title", Weight: 3, Text: func(a model.Assignment) string { return a.Title }},
	{Name: "description", Weight: 2, Text: func(a model.Assignment) string { return a.Description }},
	{Name: "courseName", Weight: 1, Text: func(a model.Assignment) string { return a.CourseName }},
}

var FileFields = []Field[model.File]{
	{Name: "title", Weight: 3, Text: func(f model.File) string { return f.Title }},
	{Name: "description", Weight: 2, Text: func(f model.File) string { return f.Description }},
	{Name: "courseName", Weight: 1, Text: func(f model.File) string { return f.CourseName }},
	{Name: "fileType", Weight: 0.5, Text: func(f model.File) string { return f.FileType }},
}

type Match[T any] struct {
	Item   T        `json:"item"`
	Score  float64  `json:"score"`
	Fields []string `json:"fields"`
}

// Index is a weighted fuzzy index over one content type.
type Index[T any] struct {
	items   []T
	fields  []Field[T]
	columns [][]string
}

func NewIndex[T any](items []T, fields []Field[T]) *Index[T] {
	cols := make([][]string, len(fields))
	for i, f := range fields {
		col := make([]string, len(items))
		for j, it := range items {
			col[j] = f.Text(it)
		}
		cols[i] = col
	}
	return &Index[T]{items: items, fields: fields, columns: cols}
}

// Search ranks items by the sum of their per-field contributions. A field
// match contributes weight*(1+0.5*s) where s is the match score normalised
// to [0,1] across that field's matches. Ties keep input order.
func (ix *Index[T]) Search(query string) []Match[T] {
	query = strings.TrimSpace(query)
	if query == "" || len(ix.items) == 0 {
		return []Match[T]{}
	}

	scores := map[int]float64{}
	hits := map[int][]string{}
	for i, f := range ix.fields {
		matches := fuzzy.Find(query, ix.columns[i])
		if len(matches) == 0 {
			continue
		}
		lo, hi := matches[0].Score, matches[0].Score
		for _, m := range matches {
			lo = min(lo, m.Score)
			hi = max(hi, m.Score)
		}
		for _, m := range matches {
			norm := 1.0
			if hi > lo {
				norm = float64(m.Score-lo) / float64(hi-lo)
			}
			scores[m.Index] += f.Weight * (1 + 0.5*norm)
			hits[m.Index] = append(hits[m.Index], f.Name)
		}
	}

	order := make([]int, 0, len(scores))
	for idx := range scores {
		order = append(order, idx)
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return order[a] < order[b]
	})

	out := make([]Match[T], 0, len(order))
	for _, idx := range order {
		out = append(out, Match[T]{Item: ix.items[idx], Score: scores[idx], Fields: hits[idx]})
	}
	return out
}

// Cache keeps built indices keyed by snapshot revision.
type Cache struct {
	c *cache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{c: cache.New(ttl, 2*ttl)}
}

// Cached returns the index stored under key, building it on a miss.
func Cached[T any](c *Cache, key string, build func() *Index[T]) *Index[T] {
	if c == nil {
		return build()
	}
	if v, ok := c.c.Get(key); ok {
		if ix, ok := v.(*Index[T]); ok {
			return ix
		}
	}
	ix := build()
	c.c.SetDefault(key, ix)
	return ix
}

func (c *Cache) Flush() {
	if c != nil {
		c.c.Flush()
	}
}
