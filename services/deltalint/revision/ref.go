// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package revision turns git-style revision selectors into two resolved
// endpoints.
//
// # Description
//
// A Ref is a logical endpoint: a concrete revision identifier, the HEAD
// symbolic ref, the staging area (Index) or the working tree (Workdir).
// Resolve maps an (old, new) pair onto commits through a vcs.Backend,
// synthesising "first parent of new" when old is absent and optionally
// replacing old with the merge base of the pair.
package revision

import "fmt"

// Kind discriminates the variants of Ref.
type Kind int

const (
	// KindID is a concrete revision identifier such as "main" or a hash.
	KindID Kind = iota

	// KindHead is the HEAD symbolic ref.
	KindHead

	// KindIndex is the staging area. It has no identifier.
	KindIndex

	// KindWorkdir is the working tree. It has no identifier.
	KindWorkdir
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindHead:
		return "HEAD"
	case KindIndex:
		return "INDEX"
	case KindWorkdir:
		return "WORKDIR"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// headSpec is the identifier HEAD resolves through.
const headSpec = "HEAD"

// Ref is a logical revision endpoint. The zero value is not valid; use ID,
// Head, Index or Workdir.
type Ref struct {
	kind Kind
	id   string
}

// Sentinel endpoints.
var (
	Head    = Ref{kind: KindHead}
	Index   = Ref{kind: KindIndex}
	Workdir = Ref{kind: KindWorkdir}
)

// ID returns a concrete ref. An empty or "HEAD" identifier yields Head so a
// concrete ref always carries a non-empty identifier.
func ID(id string) Ref {
	if id == "" || id == headSpec {
		return Head
	}
	return Ref{kind: KindID, id: id}
}

// Kind returns the variant.
func (r Ref) Kind() Kind {
	return r.kind
}

// Spec returns the identifier to hand to the backend. ok is false for Index
// and Workdir, which must never reach identifier resolution.
func (r Ref) Spec() (spec string, ok bool) {
	switch r.kind {
	case KindID:
		return r.id, true
	case KindHead:
		return headSpec, true
	default:
		return "", false
	}
}

// Concrete reports whether the ref names a commit.
func (r Ref) Concrete() bool {
	_, ok := r.Spec()
	return ok
}

// String renders the ref for logs and debug output.
func (r Ref) String() string {
	if spec, ok := r.Spec(); ok {
		return spec
	}
	return r.kind.String()
}
