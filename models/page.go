package models

import "math"

// Page is a 1-based offset pagination request.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size, defaultSize int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if size > 100 {
		size = 100
	}
	return Page{Number: number, Size: size}
}

// Skip is the number of items before the page. It saturates at
// math.MaxInt64 instead of overflowing for huge page numbers.
func (p Page) Skip() int64 {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}
	n, size := int64(p.Number-1), int64(p.Size)
	if n > math.MaxInt64/size {
		return math.MaxInt64
	}
	return n * size
}

func (p Page) TotalPages(total int64) int64 {
	if p.Size <= 0 {
		return 0
	}
	return (total + int64(p.Size) - 1) / int64(p.Size)
}
