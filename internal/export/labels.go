package export

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// Labels maps locale -> column -> header label.
type Labels map[string]map[string]string

// DefaultLabels returns the built-in English and French labels.
func DefaultLabels() Labels {
	labels, err := parseLabels(defaultLabelsYAML)
	if err != nil {
		panic(fmt.Sprintf("export: invalid built-in labels: %v", err))
	}
	return labels
}

// LoadLabels reads a label file and layers it over the built-in labels.
// An empty path yields the built-in labels.
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels()
	if path == "" {
		return labels, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}
	custom, err := parseLabels(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	for locale, entries := range custom {
		if labels[locale] == nil {
			labels[locale] = make(map[string]string, len(entries))
		}
		for column, label := range entries {
			labels[locale][column] = label
		}
	}
	return labels, nil
}

func parseLabels(data []byte) (Labels, error) {
	var labels Labels
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, err
	}
	if labels == nil {
		labels = Labels{}
	}
	return labels, nil
}

// Header translates columns for locale. Lookup order is the exact locale,
// its base language, then fallback; an untranslated column keeps its key.
func (l Labels) Header(columns []string, locale, fallback string) []string {
	candidates := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		candidates = append(candidates, base)
	}
	candidates = append(candidates, fallback)

	header := make([]string, len(columns))
	for i, column := range columns {
		header[i] = column
		for _, loc := range candidates {
			if label, ok := l[loc][column]; ok && label != "" {
				header[i] = label
				break
			}
		}
	}
	return header
}
