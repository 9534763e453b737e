// Copyright 2020 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package atom interns identifier strings to small comparable tokens, the
// leaf component of spec.md §2's budget table. It plays the role
// internal/core/adt.Feature plays for CUE labels, minus the bit-packed
// label-type encoding CUE needs and Lumber does not.
package atom

// Atom is an interned identifier. The zero Atom is never produced by
// Intern and is reserved as an invalid sentinel.
type Atom uint32

// Invalid is the zero Atom, used as an error sentinel by callers that
// look up an atom without interning it.
const Invalid Atom = 0

// Interner assigns a stable, comparable Atom to each distinct string it
// is asked to intern. It is not safe for concurrent use; per spec.md §5
// the engine is single-threaded cooperative, and a Runtime owns exactly
// one Interner for its whole lifetime.
type Interner struct {
	byString map[string]Atom
	byAtom   []string // byAtom[0] is unused (Invalid)
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{
		byString: make(map[string]Atom),
		byAtom:   []string{""},
	}
}

// Intern returns the Atom for s, allocating one if this is the first
// occurrence.
func (in *Interner) Intern(s string) Atom {
	if a, ok := in.byString[s]; ok {
		return a
	}
	a := Atom(len(in.byAtom))
	in.byAtom = append(in.byAtom, s)
	in.byString[s] = a
	return a
}

// Lookup returns the Atom already assigned to s, if any.
func (in *Interner) Lookup(s string) (Atom, bool) {
	a, ok := in.byString[s]
	return a, ok
}

// String returns the text an Atom was interned from.
func (in *Interner) String(a Atom) string {
	if int(a) >= len(in.byAtom) {
		return ""
	}
	return in.byAtom[a]
}
