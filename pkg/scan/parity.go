package scan

import (
	"context"
	"fmt"
	"sort"
)

// ParityError reports a divergence between two backends on the same
// batch. It is fatal: a backend that disagrees with the reference cannot
// be trusted not to skip keys.
type ParityError struct {
	BatchID uint64
	Ref     string
	Other   string
	Missing []string // in ref, absent from other
	Extra   []string // in other, absent from ref
}

func (e *ParityError) Error() string {
	return fmt.Sprintf("scan: parity failure on batch %d between %s and %s: %d missing, %d extra",
		e.BatchID, e.Ref, e.Other, len(e.Missing), len(e.Extra))
}

// VerifyParity runs the same batch through both backends and compares the
// canonicalized match sets. Stats that describe the same work are also
// required to agree.
func VerifyParity(ctx context.Context, ref, other Backend, batch Batch) error {
	refMatches, refStats, err := ref.RunBatch(ctx, batch)
	if err != nil {
		return err
	}
	otherMatches, otherStats, err := other.RunBatch(ctx, batch)
	if err != nil {
		return err
	}

	refSet := canonical(refMatches)
	otherSet := canonical(otherMatches)

	perr := &ParityError{BatchID: batch.ID, Ref: ref.Name(), Other: other.Name()}
	perr.Missing = difference(refSet, otherSet)
	perr.Extra = difference(otherSet, refSet)
	if len(perr.Missing) > 0 || len(perr.Extra) > 0 {
		return perr
	}
	if refStats != otherStats {
		return fmt.Errorf("scan: parity failure on batch %d: stats %+v vs %+v",
			batch.ID, refStats, otherStats)
	}
	return nil
}

// canonical reduces matches to sorted address|path|seed keys, the
// identity of a hit independent of timing or ordering.
func canonical(ms []Match) []string {
	keys := make([]string, len(ms))
	for i, m := range ms {
		keys[i] = fmt.Sprintf("%s|%s|%d|%s", m.Address, m.Path, m.Seed, m.Word)
	}
	sort.Strings(keys)
	return keys
}

func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, k := range b {
		in[k] = true
	}
	var out []string
	for _, k := range a {
		if !in[k] {
			out = append(out, k)
		}
	}
	return out
}
