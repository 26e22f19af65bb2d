package entity

import (
	"context"
	"fmt"
)

// resolveNewTitle applies the "new title" naming policy: if a sibling in
// the destination already carries the title, append an incrementing
// disambiguator until the title is unique.
func (s *Service) resolveNewTitle(ctx context.Context, parentID, title string) (string, error) {
	siblings, err := s.entities.ListChildren(ctx, parentID)
	if err != nil {
		return "", err
	}

	taken := make(map[string]struct{}, len(siblings))
	for _, sibling := range siblings {
		taken[sibling.Title] = struct{}{}
	}

	return disambiguate(title, taken), nil
}

// disambiguate returns title, or "title (n)" for the smallest n that is
// not taken.
func disambiguate(title string, taken map[string]struct{}) string {
	if _, exists := taken[title]; !exists {
		return title
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", title, n)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
