// Package certvault stores signing certificate containers encrypted under a
// key derived from the owner's password, and opens them again for signing.
package certvault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/jmcleod/signhand/internal/util"
	"github.com/jmcleod/signhand/internal/uuid"
)

// Vault encrypts, stores and decrypts certificate containers.
type Vault struct {
	store  RecordStore
	logger *slog.Logger
	now    func() time.Time
	kdf    KDFParams
}

// New returns a Vault persisting records through store.
func New(store RecordStore, opts ...Option) *Vault {
	v := &Vault{
		store:  store,
		logger: slog.Default().With("component", "certvault"),
		now:    time.Now,
		kdf:    DefaultKDFParams(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// StoreRequest carries an uploaded container.
type StoreRequest struct {
	Container   []byte
	Password    string
	OwnerID     string
	DisplayName string
	Label       string
}

// Store validates a container against its password, extracts metadata and
// persists it encrypted. The plaintext container is never written.
func (v *Vault) Store(ctx context.Context, req StoreRequest) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrMalformedInput)
	}
	if len(req.Container) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrMalformedInput)
	}

	_, leaf, _, err := pkcs12.DecodeChain(req.Container, req.Password)
	if err != nil {
		v.logger.Info("container rejected", "owner_id", req.OwnerID, "error", err)
		return nil, ErrInvalidPassword
	}

	rec, err := v.seal(req.Container, req.Password)
	if err != nil {
		return nil, err
	}
	rec.ID = uuid.New()
	rec.OwnerID = req.OwnerID
	rec.Label = strings.TrimSpace(req.Label)
	rec.Metadata = ExtractMetadata(leaf, req.DisplayName)
	rec.CreatedAt = v.now().UTC()

	if err := v.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	v.logger.Info("certificate stored",
		"certificate_id", rec.ID,
		"owner_id", rec.OwnerID,
		"common_name", rec.Metadata.CommonName,
	)
	return rec, nil
}

// seal encrypts container under a fresh salt and IV.
func (v *Vault) seal(container []byte, password string) (*Record, error) {
	salt, err := util.RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}
	iv, err := util.RandomBytes(IVSize)
	if err != nil {
		return nil, err
	}
	raw, err := util.DerivePBKDF2Key(password, salt, v.kdf)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	key := memguard.NewBufferFromBytes(raw)
	defer key.Destroy()

	ct, err := util.EncryptAESCBC(container, key.Bytes(), iv)
	if err != nil {
		return nil, fmt.Errorf("encrypting container: %w", err)
	}
	check, err := keyCheck(key.Bytes(), salt)
	if err != nil {
		return nil, err
	}
	return &Record{
		Ciphertext: ct,
		Salt:       util.HexEncode(salt),
		IV:         util.HexEncode(iv),
		KeyCheck:   util.HexEncode(check),
		KDF:        v.kdf,
	}, nil
}

// openKey derives the record key and verifies the stored key check. The
// returned buffer must be destroyed by the caller.
func (v *Vault) openKey(rec *Record, password string) (*memguard.LockedBuffer, []byte, []byte, error) {
	if len(rec.Ciphertext) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty ciphertext", ErrCorruptRecord)
	}
	salt, iv, err := rec.params()
	if err != nil {
		return nil, nil, nil, err
	}
	var want []byte
	if rec.KeyCheck != "" {
		want, err = util.HexDecodeFixed(rec.KeyCheck, util.HKDFKeyLength)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: key check: %v", ErrMalformedInput, err)
		}
	}
	raw, err := util.DerivePBKDF2Key(password, salt, rec.kdfParams())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	key := memguard.NewBufferFromBytes(raw)
	if want != nil {
		got, err := keyCheck(key.Bytes(), salt)
		if err != nil {
			key.Destroy()
			return nil, nil, nil, err
		}
		if !util.EqualConstantTime(got, want) {
			key.Destroy()
			return nil, nil, nil, ErrInvalidPassword
		}
	}
	return key, iv, want, nil
}

// Decrypt returns the plaintext container of rec. System records are
// returned unchanged without consulting the password.
func (v *Vault) Decrypt(rec *Record, password string) ([]byte, error) {
	if rec.IsSystem() {
		if len(rec.Ciphertext) == 0 {
			return nil, fmt.Errorf("%w: empty system certificate", ErrCorruptRecord)
		}
		return util.CopyBytes(rec.Ciphertext), nil
	}

	key, iv, check, err := v.openKey(rec, password)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plain, err := util.DecryptAESCBC(rec.Ciphertext, key.Bytes(), iv)
	switch {
	case errors.Is(err, util.ErrBlockAlignment):
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	case errors.Is(err, util.ErrBadPadding):
		// A verified key with bad padding means the ciphertext is damaged.
		if check != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return nil, ErrInvalidPassword
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := checkContainerHeader(plain); err != nil {
		util.WipeBytes(plain)
		return nil, err
	}
	return plain, nil
}

// ValidatePassword reports whether password opens rec. It never writes.
func (v *Vault) ValidatePassword(rec *Record, password string) bool {
	if rec.IsSystem() {
		return true
	}
	key, iv, check, err := v.openKey(rec, password)
	if err != nil {
		return false
	}
	defer key.Destroy()
	if check != nil {
		return true
	}
	plain, err := util.DecryptAESCBC(rec.Ciphertext, key.Bytes(), iv)
	if err != nil {
		return false
	}
	util.WipeBytes(plain)
	return true
}

// Get loads a record owned by ownerID.
func (v *Vault) Get(ctx context.Context, ownerID, id string) (*Record, error) {
	rec, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return rec, nil
}

// List returns every record owned by ownerID.
func (v *Vault) List(ctx context.Context, ownerID string) ([]*Record, error) {
	return v.store.ListByOwner(ctx, ownerID)
}

// Delete removes a record owned by ownerID.
func (v *Vault) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := v.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := v.store.Delete(ctx, id); err != nil {
		return err
	}
	v.logger.Info("certificate deleted", "certificate_id", id, "owner_id", ownerID)
	return nil
}

// Downgrade turns a broken encrypted record into a system record holding
// container in the clear. It is an operator repair action.
func (v *Vault) Downgrade(ctx context.Context, id string, container []byte) (*Record, error) {
	if len(container) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrMalformedInput)
	}
	if err := checkContainerHeader(container); err != nil {
		return nil, fmt.Errorf("%w: replacement is not a PKCS#12 container", ErrMalformedInput)
	}
	rec, err := v.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Ciphertext = util.CopyBytes(container)
	rec.Salt = ""
	rec.IV = ""
	rec.KeyCheck = ""
	rec.KDF = KDFParams{}
	if err := v.store.Replace(ctx, rec); err != nil {
		return nil, err
	}
	v.logger.Warn("certificate downgraded to system record", "certificate_id", id, "owner_id", rec.OwnerID)
	return rec, nil
}
