// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package auth

import (
	"golang.org/x/crypto/bcrypt"

	cerrors "netsys.dev/peeringcoord/internal/errors"
)

// HashBootstrapToken one-way hashes an operator-supplied bootstrap admin
// token before it is logged or persisted. Unlike a PeeringClient's
// SecretToken (generated server-side, compared with subtle.ConstantTimeCompare),
// the bootstrap token is chosen by a human and typed into a config file, so
// it is validated for strength and never stored or compared in the clear.
func HashBootstrapToken(token string) (string, error) {
	if err := ValidatePassword(token, DefaultPasswordPolicy()); err != nil {
		return "", cerrors.Wrap(err, cerrors.KindValidation, "weak bootstrap admin token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.KindInternal, "hash bootstrap admin token")
	}
	return string(hash), nil
}

// VerifyBootstrapToken reports whether token matches a hash produced by
// HashBootstrapToken.
func VerifyBootstrapToken(hash, token string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return cerrors.New(cerrors.KindUnauthenticated, "bootstrap admin token mismatch")
	}
	return nil
}
