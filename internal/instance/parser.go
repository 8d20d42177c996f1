package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Variant selects the instance family, which decides whether costs are rounded
type Variant string

const (
	VariantX Variant = "X" // Uchoa et al., rounded Euclidean costs
	VariantK Variant = "K" // Kytöjoki et al., real-valued costs
	VariantZ Variant = "Z" // Zachariadis and Kiranoudis, real-valued costs
)

// ParseVariant converts a user supplied parser name into a Variant
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToUpper(strings.TrimSpace(s))); v {
	case VariantX, VariantK, VariantZ:
		return v, nil
	default:
		return "", fmt.Errorf("unknown parser %q (expected X, K or Z)", s)
	}
}

// RoundCosts reports whether instances of this family use rounded costs
func (v Variant) RoundCosts() bool {
	return v == VariantX
}

// ParseError reports a malformed instance file
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	}
	return "parse error: " + e.Reason
}

// Load reads an instance file from disk
func Load(path string, variant Variant, neighborsNum int) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instance: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(f, name, variant, neighborsNum)
}

// Read parses a TSPLIB-formatted CVRP instance. The name is used when the file has no NAME entry.
func Read(r io.Reader, name string, variant Variant, neighborsNum int) (*Instance, error) {
	p := parser{name: name, dimension: -1, depot: -1}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line++
		if err := p.consume(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
		if p.done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instance: %w", err)
	}

	if err := p.check(); err != nil {
		return nil, err
	}
	return New(p.name, p.xs, p.ys, p.demands, p.capacity, variant.RoundCosts(), neighborsNum)
}

type section int

const (
	sectionHeader section = iota
	sectionCoords
	sectionDemands
	sectionDepot
)

type parser struct {
	line      int
	name      string
	dimension int
	capacity  int
	depot     int
	section   section
	xs, ys    []float64
	demands   []int
	seenCoord []bool
	seenDem   []bool
	done      bool
}

func (p *parser) fail(format string, args ...any) error {
	return &ParseError{Line: p.line, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) consume(line string) error {
	if line == "" {
		return nil
	}
	upper := strings.ToUpper(line)
	switch {
	case upper == "EOF":
		p.done = true
		return nil
	case strings.HasPrefix(upper, "NODE_COORD_SECTION"):
		if err := p.allocate(); err != nil {
			return err
		}
		p.section = sectionCoords
		return nil
	case strings.HasPrefix(upper, "DEMAND_SECTION"):
		if err := p.allocate(); err != nil {
			return err
		}
		p.section = sectionDemands
		return nil
	case strings.HasPrefix(upper, "DEPOT_SECTION"):
		p.section = sectionDepot
		return nil
	}

	if key, value, ok := strings.Cut(line, ":"); ok && (p.section == sectionHeader || isHeaderKey(key)) {
		p.section = sectionHeader
		return p.header(strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value))
	}

	switch p.section {
	case sectionCoords:
		return p.coord(strings.Fields(line))
	case sectionDemands:
		return p.demand(strings.Fields(line))
	case sectionDepot:
		return p.depotEntry(strings.Fields(line))
	default:
		return p.fail("unexpected content %q", line)
	}
}

func isHeaderKey(key string) bool {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "NAME", "COMMENT", "TYPE", "DIMENSION", "EDGE_WEIGHT_TYPE", "CAPACITY":
		return true
	}
	return false
}

func (p *parser) header(key, value string) error {
	switch key {
	case "NAME":
		if value != "" {
			p.name = value
		}
	case "TYPE":
		if t := strings.ToUpper(value); t != "CVRP" {
			return p.fail("unsupported problem type %q", value)
		}
	case "DIMENSION":
		n, err := strconv.Atoi(value)
		if err != nil || n < 2 {
			return p.fail("invalid dimension %q", value)
		}
		p.dimension = n
	case "CAPACITY":
		c, err := strconv.Atoi(value)
		if err != nil || c <= 0 {
			return p.fail("invalid capacity %q", value)
		}
		p.capacity = c
	case "EDGE_WEIGHT_TYPE":
		if t := strings.ToUpper(value); t != "EUC_2D" {
			return p.fail("unsupported edge weight type %q", value)
		}
	}
	return nil
}

func (p *parser) allocate() error {
	if p.dimension < 0 {
		return p.fail("section found before DIMENSION")
	}
	if p.xs == nil {
		p.xs = make([]float64, p.dimension)
		p.ys = make([]float64, p.dimension)
		p.demands = make([]int, p.dimension)
		p.seenCoord = make([]bool, p.dimension)
		p.seenDem = make([]bool, p.dimension)
	}
	return nil
}

// vertex maps a one-based node id to a vertex index
func (p *parser) vertex(field string) (int, error) {
	id, err := strconv.Atoi(field)
	if err != nil {
		return 0, p.fail("invalid node id %q", field)
	}
	if id < 1 || id > p.dimension {
		return 0, p.fail("node id %d outside [1, %d]", id, p.dimension)
	}
	return id - 1, nil
}

func (p *parser) coord(fields []string) error {
	if len(fields) < 3 {
		return p.fail("coordinate line needs id, x and y")
	}
	v, err := p.vertex(fields[0])
	if err != nil {
		return err
	}
	x, errX := strconv.ParseFloat(fields[1], 64)
	y, errY := strconv.ParseFloat(fields[2], 64)
	if errX != nil || errY != nil {
		return p.fail("invalid coordinates for node %s", fields[0])
	}
	p.xs[v], p.ys[v] = x, y
	p.seenCoord[v] = true
	return nil
}

func (p *parser) demand(fields []string) error {
	if len(fields) < 2 {
		return p.fail("demand line needs id and demand")
	}
	v, err := p.vertex(fields[0])
	if err != nil {
		return err
	}
	d, err := strconv.Atoi(fields[1])
	if err != nil || d < 0 {
		return p.fail("invalid demand %q for node %s", fields[1], fields[0])
	}
	p.demands[v] = d
	p.seenDem[v] = true
	return nil
}

func (p *parser) depotEntry(fields []string) error {
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return p.fail("invalid depot id %q", f)
		}
		if id == -1 {
			continue
		}
		if p.depot >= 0 {
			return p.fail("multiple depots are not supported")
		}
		p.depot = id
	}
	return nil
}

func (p *parser) check() error {
	switch {
	case p.dimension < 0:
		return &ParseError{Reason: "missing DIMENSION"}
	case p.capacity <= 0:
		return &ParseError{Reason: "missing CAPACITY"}
	case p.xs == nil:
		return &ParseError{Reason: "missing NODE_COORD_SECTION"}
	}
	if p.depot >= 0 && p.depot != 1 {
		return &ParseError{Reason: fmt.Sprintf("depot must be node 1, got %d", p.depot)}
	}
	for v := 0; v < p.dimension; v++ {
		if !p.seenCoord[v] {
			return &ParseError{Reason: fmt.Sprintf("missing coordinates for node %d", v+1)}
		}
		if !p.seenDem[v] {
			return &ParseError{Reason: fmt.Sprintf("missing demand for node %d", v+1)}
		}
	}
	if p.demands[Depot] != 0 {
		return &ParseError{Reason: fmt.Sprintf("depot demand must be zero, got %d", p.demands[Depot])}
	}
	for v := 1; v < p.dimension; v++ {
		if p.demands[v] > p.capacity {
			return &ParseError{Reason: fmt.Sprintf("node %d demand %d exceeds capacity %d", v+1, p.demands[v], p.capacity)}
		}
	}
	return nil
}
