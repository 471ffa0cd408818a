//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISSIndex is a vector index backed by a FAISS IndexFlatIP. FAISS labels are
// positions in insertion order; ids maps them back to chunk IDs. Removed vectors
// stay in the flat index with a blank id and are skipped at search time.
type FAISSIndex struct {
	index      *C.FaissIndexFlatIP
	dimensions int
	ids        []string
	removed    int
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS index with the given dimension using inner product.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var index *C.FaissIndexFlatIP
	ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dimensions))
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	return &FAISSIndex{
		index:      index,
		dimensions: dimensions,
		ids:        make([]string, 0),
	}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors with the given IDs.
func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(vectors)
	flatVectors := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flatVectors[i*f.dimensions:(i+1)*f.dimensions], vec)
	}

	ret := C.faiss_Index_add(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flatVectors[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	f.ids = append(f.ids, ids...)
	return nil
}

// Remove blanks the ids of the given vectors. Unknown IDs are ignored.
func (f *FAISSIndex) Remove(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			removeSet[id] = true
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.ids {
		if removeSet[id] {
			f.ids[i] = ""
			f.removed++
		}
	}
	return nil
}

// Search returns the top-k vectors by inner product.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 || ntotal == f.removed {
		return nil, nil
	}
	want := k
	k += f.removed
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]*VectorResult, 0, want)
	for i := 0; i < k && len(results) < want; i++ {
		label := labels[i]
		if label < 0 || int(label) >= len(f.ids) || f.ids[label] == "" {
			continue
		}
		results = append(results, &VectorResult{
			ID:    f.ids[label],
			Score: float64(distances[i]),
		})
	}
	return results, nil
}

// Save writes the FAISS index to path and the ID list to path+".ids".
// Both are written to temp files and renamed into place.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmpIndex := path + ".tmp"
	cPath := C.CString(tmpIndex)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}

	tmpIDs := path + ".ids.tmp"
	idFile, err := os.Create(tmpIDs)
	if err != nil {
		os.Remove(tmpIndex)
		return fmt.Errorf("create id file: %w", err)
	}
	if err := gob.NewEncoder(idFile).Encode(f.ids); err != nil {
		idFile.Close()
		os.Remove(tmpIndex)
		os.Remove(tmpIDs)
		return fmt.Errorf("encode ids: %w", err)
	}
	if err := idFile.Close(); err != nil {
		os.Remove(tmpIndex)
		os.Remove(tmpIDs)
		return fmt.Errorf("close id file: %w", err)
	}
	if err := os.Rename(tmpIDs, path+".ids"); err != nil {
		return fmt.Errorf("rename id file: %w", err)
	}
	if err := os.Rename(tmpIndex, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads the index and ID list from path.
// If the index file does not exist, no error is returned and the index is unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	idFile, err := os.Open(path + ".ids")
	if err != nil {
		return fmt.Errorf("open id file: %w", err)
	}
	defer idFile.Close()
	var ids []string
	if err := gob.NewDecoder(idFile).Decode(&ids); err != nil {
		return fmt.Errorf("decode ids: %w", err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	var newIndex *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &newIndex); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	dim := int(C.faiss_Index_d(newIndex))
	total := int(C.faiss_Index_ntotal(newIndex))
	if dim != f.dimensions {
		C.faiss_Index_free(newIndex)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dimensions)
	}
	if total != len(ids) {
		C.faiss_Index_free(newIndex)
		return fmt.Errorf("index holds %d vectors but %d ids", total, len(ids))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = newIndex
	f.ids = ids
	f.removed = 0
	for _, id := range ids {
		if id == "" {
			f.removed++
		}
	}
	return nil
}

// Size returns the number of live vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids) - f.removed
}

// Dimensions returns the vector dimensionality.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
