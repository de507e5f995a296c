package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/clinscore/internal/model"
)

// LoadFixtures reads a YAML or JSON document mapping table name to a list
// of rows into a Memory store.
func LoadFixtures(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	m := NewMemory()
	for table, rows := range doc {
		recs := make([]model.Record, len(rows))
		for i, r := range rows {
			recs[i] = model.Record(r)
		}
		m.Insert(table, recs...)
	}
	return m, nil
}

// Tables returns the table names held by the store.
func (m *Memory) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for t := range m.tables {
		names = append(names, t)
	}
	return names
}

// Rows returns a copy of every row in table.
func (m *Memory) Rows(table string) []model.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Record(nil), m.tables[table]...)
}
