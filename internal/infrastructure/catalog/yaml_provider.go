// Package catalog provides content catalog sources: a YAML file, the
// embedded default catalog, and a remote content API.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domain "github.com/eduaid/eduaid-hub/internal/domain/catalog"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type document struct {
	Lessons    []domain.Lesson   `yaml:"lessons"`
	Activities []domain.Activity `yaml:"activities"`
}

// YAMLProvider serves a catalog parsed once from YAML.
type YAMLProvider struct {
	doc document
}

var _ domain.Provider = (*YAMLProvider)(nil)

// NewYAMLProvider parses YAML catalog data.
func NewYAMLProvider(data []byte) (*YAMLProvider, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	return &YAMLProvider{doc: doc}, nil
}

// NewFileProvider reads a YAML catalog file.
func NewFileProvider(path string) (*YAMLProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return NewYAMLProvider(data)
}

// NewDefaultProvider serves the embedded default catalog.
func NewDefaultProvider() *YAMLProvider {
	p, err := NewYAMLProvider(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return p
}

// GetLessons implements domain.Provider.
func (p *YAMLProvider) GetLessons(ctx context.Context) ([]domain.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Lesson(nil), p.doc.Lessons...), nil
}

// GetActivities implements domain.Provider.
func (p *YAMLProvider) GetActivities(ctx context.Context) ([]domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Activity(nil), p.doc.Activities...), nil
}
