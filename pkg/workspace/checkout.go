package workspace

import "github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"

// CheckoutDiff builds the {path -> (old?, new?)} diff for switching the
// working tree from fromTree to toTree, by flattening both trees and
// unioning their paths (the same "remove tracked, write target" shape as
// the teacher's Checkout, expressed as the diff Migration.Apply expects).
func CheckoutDiff(store *object.Store, fromTree, toTree object.Hash) (map[string]object.DiffRecord, error) {
	fromFiles, err := store.FlattenTree(fromTree)
	if err != nil {
		return nil, err
	}
	toFiles, err := store.FlattenTree(toTree)
	if err != nil {
		return nil, err
	}

	diff := make(map[string]object.DiffRecord)
	for p, e := range fromFiles {
		entry := e
		diff[p] = object.DiffRecord{Old: &entry}
	}
	for p, e := range toFiles {
		entry := e
		rec := diff[p]
		rec.New = &entry
		diff[p] = rec
	}
	for p, rec := range diff {
		if rec.Old != nil && rec.New != nil && rec.Old.Mode == rec.New.Mode && rec.Old.OID == rec.New.OID {
			delete(diff, p)
		}
	}
	return diff, nil
}
