package ydb

import (
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

type TraverseFlags uint8

const (
	// LeafOnly visits nodes without children only.
	LeafOnly TraverseFlags = 1 << iota
	// ValueOnly visits scalars only.
	ValueOnly
	// LeafFirst visits children before their parent.
	LeafFirst
)

// Traverse calls fn for the nodes of the subtree at id selected by flags.
// An error from fn stops the walk and is returned with code Func.
func (db *DB) Traverse(id ir.ID, flags TraverseFlags, fn func(ir.ID) error) error {
	t := db.tree
	if !t.Valid(id) {
		return result.Errorf(result.NoEntry, "node %s", id)
	}
	var ferr error
	t.Visit(id, func(n ir.ID, post bool) bool {
		if ferr != nil {
			return false
		}
		if post != (flags&LeafFirst != 0) {
			return true
		}
		switch {
		case flags&LeafOnly != 0 && t.Len(n) != 0:
		case flags&ValueOnly != 0 && t.Type(n) != ir.ScalarType:
		default:
			ferr = fn(n)
		}
		return ferr == nil
	})
	if ferr != nil {
		return result.Wrap(result.Func, ferr)
	}
	return nil
}
