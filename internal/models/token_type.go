package models

import "fmt"

type AuthTokenType string

const AccessTokenType AuthTokenType = "AccessToken"
const RefreshTokenType AuthTokenType = "RefreshToken"

func (o AuthTokenType) String() string {
	return string(o)
}

func (o AuthTokenType) MarshalText() (data []byte, err error) {
	return []byte(o), nil
}

// UnmarshalText rejects anything other than the two known token types so that a
// corrupted credential file surfaces instead of producing an unusable token.
func (o *AuthTokenType) UnmarshalText(data []byte) error {
	switch value := AuthTokenType(data); value {
	case AccessTokenType, RefreshTokenType:
		*o = value
		return nil
	default:
		return fmt.Errorf("unknown token type %q", string(data))
	}
}
