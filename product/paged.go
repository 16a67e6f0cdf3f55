/*
Copyright © 2024 the SMOS-Box authors.
This file is part of SMOS-Box.

SMOS-Box is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SMOS-Box is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SMOS-Box.  If not, see <http://www.gnu.org/licenses/>.
*/

package product

import (
	"fmt"
	"io"
	"sync"

	"github.com/golang/groupcache/lru"
)

const (
	pageSize  = 1 << 16
	pageCount = 64
)

// pagedReader serves small reads from a least recently used cache of
// fixed size pages of an underlying reader.
type pagedReader struct {
	r    io.ReaderAt
	size int64

	mu    sync.Mutex
	pages *lru.Cache
}

func newPagedReader(r io.ReaderAt, size int64) *pagedReader {
	return &pagedReader{r: r, size: size, pages: lru.New(pageCount)}
}

func (p *pagedReader) page(n int64) ([]byte, error) {
	if b, ok := p.pages.Get(n); ok {
		return b.([]byte), nil
	}
	off := n * pageSize
	l := int64(pageSize)
	if off+l > p.size {
		l = p.size - off
	}
	b := make([]byte, l)
	if _, err := p.r.ReadAt(b, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("product: reading page %d: %w", n, err)
	}
	p.pages.Add(n, b)
	return b, nil
}

// Size returns the length of the underlying data.
func (p *pagedReader) Size() int64 { return p.size }

// ReadAt implements io.ReaderAt.
func (p *pagedReader) ReadAt(b []byte, off int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for n < len(b) {
		pos := off + int64(n)
		if pos >= p.size {
			return n, io.EOF
		}
		page, err := p.page(pos / pageSize)
		if err != nil {
			return n, err
		}
		n += copy(b[n:], page[pos%pageSize:])
	}
	return n, nil
}
