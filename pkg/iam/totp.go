package iam

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TwoFactorAuthentication derives TOTP codes from a per-user hash
type TwoFactorAuthentication struct{}

func secret(hash string) string {
	return secretEncoding.EncodeToString([]byte(hash))
}

// GetAuthenticatorURI returns the otpauth URI authenticator apps enrol from
func (TwoFactorAuthentication) GetAuthenticatorURI(name, issuer, hash string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(issuer), url.PathEscape(name), secret(hash), url.PathEscape(issuer))
}

// GetOTP returns the current code for hash
func (TwoFactorAuthentication) GetOTP(hash string) (string, error) {
	return totp.GenerateCode(secret(hash), time.Now())
}

func (TwoFactorAuthentication) IsOTPValid(otp, hash string) bool {
	return totp.Validate(otp, secret(hash))
}
