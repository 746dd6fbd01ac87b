package birdnet

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

// LoadLabels reads a label file with one label per line.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("birdnet").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, errors.New(err).
			Component("birdnet").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	return labels, nil
}

// ParseLabels reads labels from r, skipping blank lines.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewStd("label file is empty")
	}
	return labels, nil
}

// CommonName returns the common name of a "Scientific name_Common name"
// label, or the label itself when it has no scientific prefix.
func CommonName(label string) string {
	if _, common, ok := strings.Cut(label, "_"); ok && strings.TrimSpace(common) != "" {
		return strings.TrimSpace(common)
	}
	return strings.TrimSpace(label)
}
