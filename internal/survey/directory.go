package survey

import (
	"context"
	"strings"
)

// Directory resolves a raw dialed number to its active PhoneNumber binding.
//
// Contract: a miss is a normal outcome (misconfigured numbers are common) and
// is reported through the bool, never as an error the caller must interpret.
//
// Lookup is two-phase: exact match first, then a normalized scan. The
// normalization is applied symmetrically to the input and to every stored
// value so existing rows never need migrating.

type DirectoryRepo interface {
	// FindPhoneNumber does an exact match on the stored value, active rows only.
	FindPhoneNumber(ctx context.Context, toNumber string) (PhoneNumber, bool, error)

	// ListPhoneNumbers returns all active bindings for the normalized scan.
	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
}

type Directory struct {
	repo DirectoryRepo
}

func NewDirectory(repo DirectoryRepo) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) Resolve(ctx context.Context, dialed string) (PhoneNumber, bool, error) {
	pn, ok, err := d.repo.FindPhoneNumber(ctx, dialed)
	if err != nil {
		return PhoneNumber{}, false, err
	}
	if ok {
		return pn, true, nil
	}

	want := NormalizeNumber(dialed)
	all, err := d.repo.ListPhoneNumbers(ctx)
	if err != nil {
		return PhoneNumber{}, false, err
	}
	for _, cand := range all {
		if NormalizeNumber(cand.ToNumber) == want {
			return cand, true, nil
		}
	}
	return PhoneNumber{}, false, nil
}

// NormalizeNumber strips superficial formatting (spaces, hyphens, parentheses)
// and ensures a leading "+". Providers and operators are inconsistent about
// E.164 formatting; both sides of a comparison must go through this.
func NormalizeNumber(number string) string {
	var b strings.Builder
	b.Grow(len(number) + 1)
	for _, r := range number {
		switch r {
		case ' ', '-', '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") {
		out = "+" + out
	}
	return out
}
