package disk

import (
	"fmt"
	"time"
)

// URLBuilder implements the URL and SignedURL half of the Driver contract.
// Backends embed it so URL generation and signing stay uniform across
// drivers.
type URLBuilder struct {
	DiskName    string
	BasePath    string
	ServeAssets bool
	Signer      *Signer
}

func (u *URLBuilder) URL(p string) (string, error) {
	rel, err := Resolve(p)
	if err != nil {
		return "", err
	}
	if !u.ServeAssets {
		return "", fmt.Errorf("disk %q: %w", u.DiskName, ErrFeatureDisabled)
	}
	return u.BasePath + "/" + rel, nil
}

func (u *URLBuilder) SignedURL(p string, expiresIn time.Duration) (string, error) {
	base, err := u.URL(p)
	if err != nil {
		return "", err
	}
	rel, err := Resolve(p)
	if err != nil {
		return "", err
	}
	token := u.Signer.Token(u.DiskName, rel, expiresIn)
	return base + "?signature=" + token, nil
}
