// Package table reads the whitespace-separated ASCII tables instrument packages ship
// for detector layouts and transmission curves.
//
// Format: lines starting with "#" are comments; comments of the form "# key : value"
// are collected as table metadata. The first non-comment line names the columns and
// every following non-empty line is one row.
package table

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Table is a parsed ASCII table. Cells are kept as text and converted per column.
type Table struct {
	Columns []string
	Rows    [][]string
	Meta    map[string]string
}

// ReadFile parses the table at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse parses a table held in a string.
func Parse(text string) (*Table, error) {
	return Read(strings.NewReader(text))
}

// Read parses a table from r.
func Read(r io.Reader) (*Table, error) {
	t := &Table{Meta: make(map[string]string)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if k, v, ok := strings.Cut(strings.TrimLeft(text, "# "), ":"); ok {
				t.Meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			continue
		}
		fields := strings.Fields(text)
		if t.Columns == nil {
			t.Columns = fields
			continue
		}
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf("line %d: %d cells, want %d", line, len(fields), len(t.Columns))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if t.Columns == nil {
		return nil, fmt.Errorf("table has no column header")
	}
	return t, nil
}

// FromColumns builds a table from column name to values. Columns are ordered by
// order when given, alphabetically otherwise. All columns must have equal length.
func FromColumns(cols map[string][]string, order []string) (*Table, error) {
	if len(order) == 0 {
		for name := range cols {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	t := &Table{Columns: order, Meta: make(map[string]string)}
	n := -1
	for _, name := range order {
		vals, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q missing", name)
		}
		if n >= 0 && len(vals) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(vals), n)
		}
		n = len(vals)
	}
	for i := 0; i < n; i++ {
		row := make([]string, len(order))
		for j, name := range order {
			row[j] = cols[name][i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	return t.index(name) >= 0
}

func (t *Table) index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the raw cells of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.index(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q (have %s)", name, strings.Join(t.Columns, ", "))
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats returns the named column parsed as float64.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Ints returns the named column parsed as int.
func (t *Table) Ints(name string) ([]int, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(cells))
	for i, c := range cells {
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = n
	}
	return out, nil
}

// FloatsOr returns the named column, or n copies of def when the column is absent.
func (t *Table) FloatsOr(name string, def float64) ([]float64, error) {
	if !t.Has(name) {
		out := make([]float64, len(t.Rows))
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	return t.Floats(name)
}
