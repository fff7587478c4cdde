// Package users keeps the display profile of each user so the signing engine
// can address signers by name and email.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmcleod/signhand/internal/util"
	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage"
)

const (
	Namespace  = "users"
	recordType = "USER"
)

// Directory is a repository-backed signing.UserDirectory.
type Directory struct {
	repo storage.Repository
}

var _ signing.UserDirectory = (*Directory)(nil)

func New(repo storage.Repository) *Directory {
	return &Directory{repo: repo}
}

// Put creates or replaces a profile. Names are NFKC-normalized and emails
// folded to lower case.
func (d *Directory) Put(ctx context.Context, u signing.User) error {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	u.Name = strings.TrimSpace(util.Normalize(u.Name))
	u.Email = util.FoldKey(u.Email)
	rec, err := storage.MarshalRecord(u, 1)
	if err != nil {
		return err
	}
	return d.repo.Put(ctx, Namespace, recordType, u.ID, rec)
}

// Lookup returns the profile for userID or signing.ErrUserNotFound.
func (d *Directory) Lookup(ctx context.Context, userID string) (signing.User, error) {
	rec, err := d.repo.Get(ctx, Namespace, recordType, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
			return signing.User{}, fmt.Errorf("%s: %w", userID, signing.ErrUserNotFound)
		}
		return signing.User{}, err
	}
	var u signing.User
	if err := storage.UnmarshalRecord(rec, &u); err != nil {
		return signing.User{}, err
	}
	return u, nil
}
