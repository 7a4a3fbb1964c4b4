package rcxfile

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chewxy/sexp"
)

// S-expression navigation helpers

// atom returns the text of a leaf with surrounding quotes removed.
func atom(s sexp.Sexp) (string, bool) {
	if s == nil || !s.IsLeaf() {
		return "", false
	}
	return strings.Trim(fmt.Sprint(s), `"`), true
}

// toSlice converts an s-expression list to a Go slice.
func toSlice(s sexp.Sexp) []sexp.Sexp {
	var items []sexp.Sexp
	if s == nil || s.IsLeaf() {
		return items
	}
	for s != nil && !s.IsLeaf() {
		// Empty list
		leafCount := s.LeafCount()
		if leafCount == 0 {
			break
		}
		if head := s.Head(); head != nil {
			items = append(items, head)
		}
		if leafCount <= 1 {
			break
		}
		s = s.Tail()
	}
	return items
}

// keyOf returns the leading symbol of a list.
func keyOf(s sexp.Sexp) string {
	items := toSlice(s)
	if len(items) == 0 {
		return ""
	}
	key, _ := atom(items[0])
	return key
}

// findNode returns the first child list starting with key.
// Example: findNode(net, "terms") finds (terms 2).
func findNode(s sexp.Sexp, key string) (sexp.Sexp, bool) {
	for _, item := range toSlice(s) {
		if item != nil && !item.IsLeaf() && keyOf(item) == key {
			return item, true
		}
	}
	return nil, false
}

// findAllNodes returns every child list starting with key.
func findAllNodes(s sexp.Sexp, key string) []sexp.Sexp {
	var results []sexp.Sexp
	for _, item := range toSlice(s) {
		if item != nil && !item.IsLeaf() && keyOf(item) == key {
			results = append(results, item)
		}
	}
	return results
}

// hasFlag reports whether a bare symbol appears in the list after the key.
func hasFlag(s sexp.Sexp, flag string) bool {
	items := toSlice(s)
	for _, item := range items[min(1, len(items)):] {
		if a, ok := atom(item); ok && a == flag {
			return true
		}
	}
	return false
}

// getString extracts the atom at index. Index 0 is the key.
func getString(s sexp.Sexp, index int) (string, error) {
	if s == nil || s.IsLeaf() {
		return "", fmt.Errorf("expected list, got leaf")
	}
	items := toSlice(s)
	if index < 0 || index >= len(items) {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(items))
	}
	a, ok := atom(items[index])
	if !ok {
		return "", fmt.Errorf("expected atom at index %d, got list", index)
	}
	return a, nil
}

// getName extracts a name written by escapeName.
func getName(s sexp.Sexp, index int) (string, error) {
	str, err := getString(s, index)
	if err != nil {
		return "", err
	}
	name, err := url.PathUnescape(str)
	if err != nil {
		return "", fmt.Errorf("bad name %q: %w", str, err)
	}
	return name, nil
}

func getFloat(s sexp.Sexp, index int) (float64, error) {
	str, err := getString(s, index)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}
	return val, nil
}

func getInt(s sexp.Sexp, index int) (int, error) {
	str, err := getString(s, index)
	if err != nil {
		return 0, err
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}
	return val, nil
}

func getUint(s sexp.Sexp, index int) (uint32, error) {
	str, err := getString(s, index)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseUint(str, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse id %q: %w", str, err)
	}
	return uint32(val), nil
}

// getFloats extracts every value after the key, e.g. (res 10 12.5).
func getFloats(s sexp.Sexp) ([]float64, error) {
	items := toSlice(s)
	vals := make([]float64, 0, len(items))
	for i := 1; i < len(items); i++ {
		v, err := getFloat(s, i)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// getXY extracts (key X Y).
func getXY(s sexp.Sexp) (int, int, error) {
	x, err := getInt(s, 1)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse X: %w", err)
	}
	y, err := getInt(s, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse Y: %w", err)
	}
	return x, y, nil
}

// optFloats returns the values of child list key, or nil when absent.
func optFloats(s sexp.Sexp, key string) ([]float64, error) {
	n, ok := findNode(s, key)
	if !ok {
		return nil, nil
	}
	vals, err := getFloats(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return vals, nil
}

// optBool reads (key yes|no).
func optBool(s sexp.Sexp, key string) (bool, error) {
	n, ok := findNode(s, key)
	if !ok {
		return false, nil
	}
	v, err := getString(n, 1)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	switch v {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("%s: expected yes or no, got %q", key, v)
}
