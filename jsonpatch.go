package ydb

import (
	"bytes"
	"errors"
	"slices"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/format"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/libdiff"
	"github.com/signadot/ydb/parse"
	"github.com/signadot/ydb/result"
)

// PatchJSON applies a JSON patch to the subtree at path. A JSON array is an
// RFC 6902 patch and an object an RFC 7386 merge patch. The patched
// subtree is diffed against the current one and the difference applied as
// one call, so hooks and peers see only what changed.
func (db *DB) PatchJSON(path string, patch []byte) error {
	p, err := ypath.Parse(path)
	if err != nil {
		return err
	}
	if p.HasWildcard() {
		return result.Errorf(result.InvalidArgs, "wildcard in patch path %s", p)
	}
	id, err := db.tree.Find(db.tree.Top(), p)
	if err != nil {
		return err
	}
	var doc bytes.Buffer
	if err := encode.Encode(db.tree, id, &doc, encode.EncodeFormat(format.JSONFormat), encode.EncodeWire(true)); err != nil {
		return err
	}
	var out []byte
	if trimmed := bytes.TrimSpace(patch); len(trimmed) > 0 && trimmed[0] == '[' {
		jp, err := jsonpatch.DecodePatch(patch)
		if err != nil {
			return result.Errorf(result.InvalidArgs, "json patch: %w", err)
		}
		out, err = jp.Apply(doc.Bytes())
		if err != nil {
			return result.Errorf(result.MergeFailed, "json patch: %w", err)
		}
	} else {
		out, err = jsonpatch.MergePatch(doc.Bytes(), patch)
		if err != nil {
			return result.Errorf(result.MergeFailed, "json merge patch: %w", err)
		}
	}
	nt, err := parse.Parse(out)
	if err != nil {
		return err
	}
	return db.replace(p, id, nt, nt.Top())
}

// replace makes the node id at p equal to node nid of nt, changing only
// what differs.
func (db *DB) replace(p ypath.Path, id ir.ID, nt *ir.Tree, nid ir.ID) error {
	rm, mg := libdiff.Diff(db.tree, id, nt, nid)
	m := db.newMutation()
	var errs []error
	if rm != nil {
		var paths []ypath.Path
		for _, rp := range deletePaths(rm) {
			paths = append(paths, append(slices.Clone(p), rp...))
		}
		ids := m.targets(paths)
		if err := m.protected(ids); err != nil {
			return err
		}
		if err := m.delete(ids); err != nil && !errors.Is(err, result.NoEntry) {
			errs = append(errs, err)
		}
	}
	if mg != nil {
		errs = append(errs, m.writeAt(p, mg))
	}
	return db.commit(m, db.origin, nil, result.Join(errs...))
}
