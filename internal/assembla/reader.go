// Package assembla reads an Assembla space export and builds the tickets,
// milestones, labels and comments it describes.
package assembla

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	schemaSuffix = ":fields"
	maxLineSize  = 64 * 1024 * 1024
)

type Record struct {
	Kind   Kind
	Line   int
	Fields []string
}

type TagCount struct {
	Tag   string
	Count int
}

// Export holds every decoded row of a dump, grouped by kind in file order.
type Export struct {
	Counts  []TagCount
	Records map[Kind][]Record
}

func (e *Export) count(tag string) {
	for i := range e.Counts {
		if e.Counts[i].Tag == tag {
			e.Counts[i].Count++
			return
		}
	}
	e.Counts = append(e.Counts, TagCount{Tag: tag, Count: 1})
}

func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read scans the export line by line. Schema lines are skipped, every other
// tag is counted and rows of known kinds are decoded.
func Read(r io.Reader) (*Export, error) {
	exp := &Export{Records: make(map[Kind][]Record)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tag, _, _ := strings.Cut(line, ",")
		if strings.HasSuffix(tag, schemaSuffix) {
			continue
		}
		exp.count(tag)

		kind := Kind(tag)
		if !kind.Known() {
			continue
		}
		fields, err := DecodeRow(kind, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		exp.Records[kind] = append(exp.Records[kind], Record{Kind: kind, Line: lineNo, Fields: fields})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return exp, nil
}
