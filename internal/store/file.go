// Package store reads and writes the user-defined marks file and watches it
// for changes.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"calmark/internal/model"
)

// ErrUnsupportedFormat is returned for marks files that are neither YAML
// nor JSON by extension.
var ErrUnsupportedFormat = errors.New("unsupported marks file format")

const dateLayout = "2006-01-02"

// FileMark is the on-disk shape of a mark. Date is YYYY-MM-DD; when empty
// Year/Month/Day must all be set.
type FileMark struct {
	Kind    model.Kind `yaml:"kind" json:"kind"`
	Date    string     `yaml:"date,omitempty" json:"date,omitempty"`
	Year    *int       `yaml:"year,omitempty" json:"year,omitempty"`
	Month   *int       `yaml:"month,omitempty" json:"month,omitempty"`
	Day     *int       `yaml:"day,omitempty" json:"day,omitempty"`
	Text    string     `yaml:"text" json:"text"`
	Color   string     `yaml:"color,omitempty" json:"color,omitempty"`
	BgColor string     `yaml:"bg_color,omitempty" json:"bg_color,omitempty"`
}

// fileDoc is the top-level document of a marks file.
type fileDoc struct {
	Marks []FileMark `yaml:"marks" json:"marks"`
}

type format int

const (
	formatYAML format = iota
	formatJSON
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json", ".jsonc":
		return formatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads the marks file at path. A missing file yields no marks.
// Dates are interpreted in loc (time.Local when nil).
func LoadFile(path string, loc *time.Location) ([]model.Mark, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Mark{}, nil
		}
		return nil, err
	}

	var doc fileDoc
	switch f {
	case formatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("store: parse %s: %w", path, err)
		}
	case formatJSON:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("store: parse %s: %w", path, err)
		}
		if err := json.Unmarshal(std, &doc); err != nil {
			return nil, fmt.Errorf("store: parse %s: %w", path, err)
		}
	}

	return FromFile(doc.Marks, loc)
}

// FromFile converts on-disk marks to model marks.
func FromFile(in []FileMark, loc *time.Location) ([]model.Mark, error) {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Mark, 0, len(in))
	for i, fm := range in {
		m := model.Mark{
			Kind:    fm.Kind,
			Year:    fm.Year,
			Month:   fm.Month,
			Day:     fm.Day,
			Text:    fm.Text,
			Color:   fm.Color,
			BgColor: fm.BgColor,
		}
		if fm.Date != "" {
			t, err := time.ParseInLocation(dateLayout, fm.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("store: mark %d: bad date %q: %w", i, fm.Date, err)
			}
			m.Date = &t
		}
		out = append(out, m)
	}
	return out, nil
}

// ToFile converts model marks to their on-disk shape. Explicit dates are
// written as YYYY-MM-DD.
func ToFile(in []model.Mark) []FileMark {
	out := make([]FileMark, 0, len(in))
	for _, m := range in {
		fm := FileMark{
			Kind:    m.Kind,
			Year:    m.Year,
			Month:   m.Month,
			Day:     m.Day,
			Text:    m.Text,
			Color:   m.Color,
			BgColor: m.BgColor,
		}
		if m.Date != nil {
			fm.Date = m.Date.Format(dateLayout)
			fm.Year, fm.Month, fm.Day = nil, nil, nil
		}
		out = append(out, fm)
	}
	return out
}

// SaveFile atomically replaces the marks file at path.
func SaveFile(path string, marks []FileMark) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	doc := fileDoc{Marks: marks}
	if doc.Marks == nil {
		doc.Marks = []FileMark{}
	}

	var data []byte
	switch f {
	case formatYAML:
		data, err = yaml.Marshal(&doc)
	case formatJSON:
		data, err = json.MarshalIndent(&doc, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// FileSource serves the marks file as a host source.
type FileSource struct {
	Path     string
	Location *time.Location
}

func (s FileSource) Name() string { return "file" }

func (s FileSource) Marks(_ context.Context) ([]model.Mark, error) {
	return LoadFile(s.Path, s.Location)
}
