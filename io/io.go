/*package io reads simplepart configuration files and reads and writes
trajectory logs.
*/
package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Log is a trajectory log read back into memory.
type Log struct {
	// Columns lists the column names in file order.
	Columns []string
	// Data holds one slice of values per column, indexed like Columns.
	Data [][]float64

	index map[string]int
}

// Column returns the values of the named column and whether it exists.
func (l *Log) Column(name string) ([]float64, bool) {
	i, ok := l.index[name]
	if !ok {
		return nil, false
	}
	return l.Data[i], true
}

// Rows returns the number of rows in the log.
func (l *Log) Rows() int {
	if len(l.Data) == 0 {
		return 0
	}
	return len(l.Data[0])
}

// ReadLog reads the trajectory log fname.
func ReadLog(fname string) (*Log, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	log, err := ParseLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return log, nil
}

// ParseLog reads a trajectory log from r.
func ParseLog(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	log := &Log{
		Columns: header,
		Data:    make([][]float64, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, name := range header {
		log.index[name] = i
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		for i, s := range rec {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"line %d, column %s: %w", line, header[i], err,
				)
			}
			log.Data[i] = append(log.Data[i], x)
		}
	}
	return log, nil
}

// Series returns the simulated times and the three components of a column
// group (see ColumnNames) for the particle with the given ID.
func (l *Log) Series(id int, prefix string) (ts []float64, xs [3][]float64, err error) {
	ts, ok := l.Column("Time")
	if !ok {
		return nil, xs, fmt.Errorf("log has no Time column")
	}
	for j, name := range ColumnNames(id, prefix) {
		if xs[j], ok = l.Column(name); !ok {
			return nil, xs, fmt.Errorf("log has no column %s", name)
		}
	}
	return ts, xs, nil
}
