// Package catalog holds the allowed maintenance tasks and operators offered by
// the entry form.
package catalog

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type Options struct {
	Tasks     []string `yaml:"tasks" json:"tasks"`
	Operators []string `yaml:"operators" json:"operators"`
}

func DefaultOptions() *Options {
	return &Options{
		Tasks: []string{
			"Remover y limpiar el deposito de basura",
			"Limpiar la plataforma de la tira y del deposito de residuos",
			"Limpieza del transportador de tira",
			"Limpieza y desinfección externa",
			"Calibración",
			"Cambio de papel",
			"Cambio de fusibles",
		},
		Operators: []string{
			"Anibal Saavedra",
			"Juan Ramos",
			"Nycole Farias",
			"Stefanie Maureira",
			"Maria J.Vera",
			"Felipe Fernandez",
			"Paula Gutierrez",
			"Paola Araya",
			"Maria Rodriguez",
			"Pamela Montenegro",
		},
	}
}

func (o *Options) clone() *Options {
	return &Options{
		Tasks:     slices.Clone(o.Tasks),
		Operators: slices.Clone(o.Operators),
	}
}

// normalize trims entries, drops blanks and duplicates, and rejects empty lists.
func (o *Options) normalize() error {
	o.Tasks = dedupe(o.Tasks)
	o.Operators = dedupe(o.Operators)
	var errs []error
	if len(o.Tasks) == 0 {
		errs = append(errs, errors.New("tasks must not be empty"))
	}
	if len(o.Operators) == 0 {
		errs = append(errs, errors.New("operators must not be empty"))
	}
	return errors.Join(errs...)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ParseOptions decodes a YAML options document.
func ParseOptions(data []byte) (*Options, error) {
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	if err := o.normalize(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &o, nil
}

// LoadOptions reads and parses the options file at path.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	o, err := ParseOptions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

// LoadOptionsOrDefault returns the built-in options when path is empty or
// names a file that does not exist.
func LoadOptionsOrDefault(path string) (*Options, error) {
	if path == "" {
		return DefaultOptions(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultOptions(), nil
	}
	return LoadOptions(path)
}

func hashFile(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return sha256.Sum256(data), nil
}
