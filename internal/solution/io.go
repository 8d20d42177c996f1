package solution

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// WriteTo writes the solution in the CVRPLIB format: one "Route #k:" line per route then the cost
func (s *Solution) WriteTo(w io.Writer) (int64, error) {
	return WriteRoutes(w, s.Routes(), s.cost)
}

// WriteRoutes writes routes and their total cost in the CVRPLIB format
func WriteRoutes(w io.Writer, routes [][]int, cost float64) (int64, error) {
	var b strings.Builder
	for k, route := range routes {
		fmt.Fprintf(&b, "Route #%d:", k+1)
		for _, c := range route {
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(c))
		}
		b.WriteByte('\n')
	}
	b.WriteString("Cost ")
	b.WriteString(FormatCost(cost))
	b.WriteByte('\n')

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// StoreToFile writes the solution to path, replacing any existing file
func (s *Solution) StoreToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create solution file: %w", err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write solution: %w", err)
	}
	return f.Close()
}

// FormatCost prints a cost without trailing zeros
func FormatCost(cost float64) string {
	return strconv.FormatFloat(cost, 'f', -1, 64)
}

// ReadRoutes parses a CVRPLIB solution listing and returns its routes
func ReadRoutes(r io.Reader) ([][]int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read solution: %w", err)
	}
	var routes [][]int
	for lineNo, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Route") {
			continue
		}
		_, body, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ':'", lineNo+1)
		}
		var route []int
		for _, f := range strings.Fields(body) {
			c, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid customer %q", lineNo+1, f)
			}
			route = append(route, c)
		}
		routes = append(routes, route)
	}
	return routes, nil
}
