// Copyright 2025 The Etc1 Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package coherence reorders palette (codebook) entries so that similar
// entries end up next to each other, which helps any delta or entropy coder
// that later sees the entries, or the stream of indexes referring to them.
//
// Finding the best order is a shortest Hamiltonian path problem, which is
// NP-hard. BuildReorderTable uses the greedy edge heuristic instead: starting
// from singleton chains, repeatedly join the two chains whose end points are
// the most alike.
package coherence

import (
	"errors"
	"math"
	"slices"
)

var (
	ErrBadArgument = errors.New("coherence: bad argument")
)

// Similarity scores how alike two palette entries are, identified by their
// index values. Higher means more alike. It should be symmetric and
// deterministic. It may be called concurrently by concurrent
// BuildReorderTable calls but not within a single call.
type Similarity func(a int, b int) float64

// MaxCandidateEdges bounds how many of its most alike partners each entry
// remembers during the first pass. Palettes no larger than
// MaxCandidateEdges+1 entries are processed as a complete graph.
const MaxCandidateEdges = 32

// BuildReorderTable returns remap, a permutation of [0, len(indices)), such
// that placing indices[rank] at position remap[rank] puts similar entries
// close together.
//
// indices holds distinct values in [0, n). similarity is called with pairs of
// those values, at most once per unordered pair in the first pass, plus once
// per pair of chain end points if a second pass is needed.
//
// weight, clamped to [0, 1], blends the similarity score with a preference
// for keeping the original order. The affinity between the entries at ranks
// i and j is
//
//	weight*similarity(indices[i], indices[j]) + (1-weight)*(1 - |i-j|/(k-1))
//
// where k is len(indices). A zero weight never calls similarity and returns
// the identity permutation. NaN scores are treated as -∞.
//
// Ties are broken by the smaller index value, so the result depends only on
// the arguments and the similarity scores.
func BuildReorderTable(n int, indices []int, similarity Similarity, weight float64) ([]int, error) {
	k := len(indices)
	if (k < 1) || (n < k) || (similarity == nil) || math.IsNaN(weight) {
		return nil, ErrBadArgument
	}
	sorted := slices.Sorted(slices.Values(indices))
	for i, v := range sorted {
		if (v < 0) || (n <= v) || ((i > 0) && (sorted[i-1] == v)) {
			return nil, ErrBadArgument
		}
	}

	if k == 1 {
		return []int{0}, nil
	}

	r := &reorderer{
		indices:    indices,
		similarity: similarity,
		weight:     max(0, min(1, weight)),
		k:          int32(k),
		parent:     make([]int32, k),
		deg:        make([]uint8, k),
		adj:        make([][2]int32, k),
	}
	for i := range r.parent {
		r.parent[i] = int32(i)
	}

	r.link(r.candidateEdges())
	if r.merges < (r.k - 1) {
		r.link(r.endPointEdges())
	}
	return r.walk(), nil
}

// edge joins the entries at ranks lo and hi, where indices[lo] < indices[hi].
type edge struct {
	affinity float64
	lo       int32
	hi       int32
}

type reorderer struct {
	indices    []int
	similarity Similarity
	weight     float64
	k          int32

	// parent is a union-find forest over ranks. Each tree is one chain.
	parent []int32
	// deg and adj are each rank's number of chain neighbors and their ranks.
	deg    []uint8
	adj    [][2]int32
	merges int32
}

func (r *reorderer) makeEdge(i int32, j int32) edge {
	affinity := 0.0
	if r.weight > 0 {
		s := r.similarity(r.indices[i], r.indices[j])
		if math.IsNaN(s) {
			s = math.Inf(-1)
		}
		affinity = r.weight * s
	}
	if r.weight < 1 {
		d := i - j
		if d < 0 {
			d = -d
		}
		affinity += (1 - r.weight) * (1 - (float64(d) / float64(r.k-1)))
	}

	if r.indices[i] > r.indices[j] {
		i, j = j, i
	}
	return edge{affinity: affinity, lo: i, hi: j}
}

// before is the order in which edges are offered to link: most alike first,
// then by the smaller index value, then by the larger index value.
func (r *reorderer) before(x edge, y edge) bool {
	if x.affinity != y.affinity {
		return x.affinity > y.affinity
	}
	if vx, vy := r.indices[x.lo], r.indices[y.lo]; vx != vy {
		return vx < vy
	}
	return r.indices[x.hi] < r.indices[y.hi]
}

func (r *reorderer) compare(x edge, y edge) int {
	if r.before(x, y) {
		return -1
	} else if r.before(y, x) {
		return +1
	}
	return 0
}

// candidateEdges scores every pair of entries once. For large palettes, it
// keeps only each entry's MaxCandidateEdges best edges.
func (r *reorderer) candidateEdges() []edge {
	k := r.k
	if k <= (MaxCandidateEdges + 1) {
		edges := make([]edge, 0, (k*(k-1))/2)
		for i := range k {
			for j := i + 1; j < k; j++ {
				edges = append(edges, r.makeEdge(i, j))
			}
		}
		slices.SortFunc(edges, r.compare)
		return edges
	}

	heaps := make([]edgeHeap, k)
	storage := make([]edge, int(k)*MaxCandidateEdges)
	for i := range heaps {
		heaps[i].r = r
		heaps[i].edges = storage[i*MaxCandidateEdges : i*MaxCandidateEdges : (i+1)*MaxCandidateEdges]
	}
	for i := range k {
		for j := i + 1; j < k; j++ {
			e := r.makeEdge(i, j)
			heaps[i].offer(e)
			heaps[j].offer(e)
		}
	}

	edges := make([]edge, 0, len(storage))
	for i := range heaps {
		edges = append(edges, heaps[i].edges...)
	}
	slices.SortFunc(edges, r.compare)
	return slices.CompactFunc(edges, func(x edge, y edge) bool {
		return (x.lo == y.lo) && (x.hi == y.hi)
	})
}

// endPointEdges scores every pair of chain end points that are on different
// chains. A singleton chain's only entry is an end point.
func (r *reorderer) endPointEdges() []edge {
	ends := []int32(nil)
	for i := range r.k {
		if r.deg[i] < 2 {
			ends = append(ends, i)
		}
	}

	edges := []edge(nil)
	for x, i := range ends {
		for _, j := range ends[x+1:] {
			if r.find(i) != r.find(j) {
				edges = append(edges, r.makeEdge(i, j))
			}
		}
	}
	slices.SortFunc(edges, r.compare)
	return edges
}

// link greedily accepts edges, in order, that join the ends of two different
// chains.
func (r *reorderer) link(edges []edge) {
	for _, e := range edges {
		if r.merges == (r.k - 1) {
			break
		}
		a, b := e.lo, e.hi
		if (r.deg[a] >= 2) || (r.deg[b] >= 2) {
			continue
		}
		ra, rb := r.find(a), r.find(b)
		if ra == rb {
			continue
		}
		r.parent[max(ra, rb)] = min(ra, rb)

		r.adj[a][r.deg[a]] = b
		r.deg[a]++
		r.adj[b][r.deg[b]] = a
		r.deg[b]++
		r.merges++
	}
}

func (r *reorderer) find(i int32) int32 {
	for r.parent[i] != i {
		r.parent[i] = r.parent[r.parent[i]]
		i = r.parent[i]
	}
	return i
}

// walk follows the single remaining chain from its end with the smaller rank.
func (r *reorderer) walk() []int {
	start := int32(0)
	for r.deg[start] > 1 {
		start++
	}

	remap := make([]int, r.k)
	prev, cur := int32(-1), start
	for pos := range remap {
		remap[cur] = pos
		next := int32(-1)
		for _, neighbor := range r.adj[cur][:r.deg[cur]] {
			if neighbor != prev {
				next = neighbor
			}
		}
		prev, cur = cur, next
	}
	return remap
}

// edgeHeap keeps the best len(edges) edges offered so far. Its root is the
// worst of those kept.
type edgeHeap struct {
	r     *reorderer
	edges []edge
}

func (h *edgeHeap) offer(e edge) {
	if len(h.edges) < cap(h.edges) {
		h.edges = append(h.edges, e)
		h.up(len(h.edges) - 1)
	} else if h.r.before(e, h.edges[0]) {
		h.edges[0] = e
		h.down(0)
	}
}

// worse is the heap order: the root is the edge that link would see last.
func (h *edgeHeap) worse(i int, j int) bool {
	return h.r.before(h.edges[j], h.edges[i])
}

func (h *edgeHeap) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.worse(i, p) {
			break
		}
		h.edges[i], h.edges[p] = h.edges[p], h.edges[i]
		i = p
	}
}

func (h *edgeHeap) down(i int) {
	n := len(h.edges)
	for {
		c := (2 * i) + 1
		if c >= n {
			break
		}
		if (c+1 < n) && h.worse(c+1, c) {
			c++
		}
		if !h.worse(c, i) {
			break
		}
		h.edges[i], h.edges[c] = h.edges[c], h.edges[i]
		i = c
	}
}

// Inverse returns order, the inverse permutation of remap: order[remap[i]] ==
// i for every i.
func Inverse(remap []int) []int {
	order := make([]int, len(remap))
	for i, pos := range remap {
		order[pos] = i
	}
	return order
}

// Order returns indices rearranged by remap: the value at rank i moves to
// position remap[i].
func Order(indices []int, remap []int) []int {
	ret := make([]int, len(indices))
	for i, pos := range remap {
		ret[pos] = indices[i]
	}
	return ret
}

// Expand turns remap into a table over the whole [0, n) index space. Values
// not in indices map to themselves. The values in indices are dealt, in
// ascending order, to the active values' new positions, so that
// Expand(...)[indices[i]] is the remap[i]'th smallest value in indices. The
// result is always a permutation of [0, n).
func Expand(n int, indices []int, remap []int) ([]int, error) {
	if (len(indices) != len(remap)) || (n < len(indices)) {
		return nil, ErrBadArgument
	}
	sorted := slices.Sorted(slices.Values(indices))

	table := make([]int, n)
	for i := range table {
		table[i] = i
	}
	for i, v := range indices {
		pos := remap[i]
		if (v < 0) || (n <= v) || (pos < 0) || (len(sorted) <= pos) {
			return nil, ErrBadArgument
		}
		table[v] = sorted[pos]
	}
	return table, nil
}
