// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import "sync"

// Knowledge is an append-only list of free-text facts. Duplicates are kept.
type Knowledge struct {
	mu    sync.RWMutex
	facts []string
}

// NewKnowledge creates an empty fact list.
func NewKnowledge() *Knowledge {
	return &Knowledge{}
}

// Add appends a fact.
func (k *Knowledge) Add(fact string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.facts = append(k.facts, fact)
}

// Recent returns up to n of the newest facts in insertion order. A
// non-positive n returns no facts.
func (k *Knowledge) Recent(n int) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if n <= 0 {
		return []string{}
	}
	start := max(len(k.facts)-n, 0)
	out := make([]string, len(k.facts)-start)
	copy(out, k.facts[start:])
	return out
}

// All returns every fact in insertion order.
func (k *Knowledge) All() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]string(nil), k.facts...)
}

// Len returns the number of facts stored.
func (k *Knowledge) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.facts)
}
