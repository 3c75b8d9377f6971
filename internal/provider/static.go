package provider

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var staticYAML []byte

// StaticLoader serves the embedded provider table. It never fails once the
// embedded data parses, which is checked by tests.
type StaticLoader struct{}

func (StaticLoader) Load(_ context.Context) (Catalog, error) {
	return parseYAML(staticYAML)
}

func parseYAML(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing provider table: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("provider table: %w", err)
	}
	return c, nil
}
