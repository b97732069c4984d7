//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/AuxIndexStructures_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// rangeSlack widens the FAISS search radius below the threshold.
const rangeSlack = 1e-5

const defaultFAISSBatch = 1024

// FAISSPairs finds similar pairs with a FAISS flat inner-product index and range
// search. Candidates are re-checked with Similar so results match ScanPairs exactly.
// If FAISS fails the scan falls back to ScanPairs.
type FAISSPairs struct {
	// BatchSize bounds the queries per range search call. Zero selects 1024.
	BatchSize int
}

// FAISSAvailable reports whether FAISS support is compiled in (build tag faiss).
func FAISSAvailable() bool { return true }

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Pairs calls fn for every pair i < j of snap that is Similar at threshold.
func (f FAISSPairs) Pairs(snap *Snapshot, threshold float64, fn func(i, j int)) {
	if snap.Len() < 2 {
		return
	}
	// Clamped similarity makes every pair qualify; range search would miss negative scores.
	if threshold <= 0 {
		ScanPairs(snap, threshold, fn)
		return
	}
	if err := f.rangePairs(snap, threshold, fn); err != nil {
		// fn may have seen some pairs already; callers union them, so repeats are harmless.
		ScanPairs(snap, threshold, fn)
	}
}

func (f FAISSPairs) rangePairs(snap *Snapshot, threshold float64, fn func(i, j int)) error {
	n := snap.Len()
	dims := len(snap.Vectors[0])
	flat := make([]float32, 0, n*dims)
	for _, v := range snap.Vectors {
		if len(v) != dims {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), dims)
		}
		flat = append(flat, v...)
	}

	var index *C.FaissIndexFlatIP
	if C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dims)) != 0 {
		return fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	defer C.faiss_Index_free(index)
	if C.faiss_Index_add(index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0]))) != 0 {
		return fmt.Errorf("FAISS add failed: %s", faissLastError())
	}

	// Inner-product range search keeps scores strictly above the radius. The
	// slack lets float32 scores of exact duplicates through; Similar decides.
	radius := C.float(threshold - rangeSlack)
	batch := f.BatchSize
	if batch <= 0 {
		batch = defaultFAISSBatch
	}
	for start := 0; start < n; start += batch {
		end := start + batch
		if end > n {
			end = n
		}
		nq := end - start
		var res *C.FaissRangeSearchResult
		if C.faiss_RangeSearchResult_new(&res, C.idx_t(nq)) != 0 {
			return fmt.Errorf("FAISS range result alloc failed: %s", faissLastError())
		}
		query := (*C.float)(unsafe.Pointer(&flat[start*dims]))
		if C.faiss_Index_range_search(index, C.idx_t(nq), query, radius, res) != 0 {
			C.faiss_RangeSearchResult_free(res)
			return fmt.Errorf("FAISS range search failed: %s", faissLastError())
		}

		var limsPtr *C.size_t
		C.faiss_RangeSearchResult_lims(res, &limsPtr)
		lims := unsafe.Slice(limsPtr, nq+1)
		var labelsPtr *C.idx_t
		var distPtr *C.float
		C.faiss_RangeSearchResult_labels(res, &labelsPtr, &distPtr)
		var labels []C.idx_t
		if total := int(lims[nq]); total > 0 {
			labels = unsafe.Slice(labelsPtr, total)
		}

		for q := 0; q < nq; q++ {
			i := start + q
			for k := lims[q]; k < lims[q+1]; k++ {
				j := int(labels[k])
				if j <= i || j >= n {
					continue
				}
				if Similar(snap.Vectors[i], snap.Vectors[j], threshold) {
					fn(i, j)
				}
			}
		}
		C.faiss_RangeSearchResult_free(res)
	}
	return nil
}
