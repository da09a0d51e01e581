package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CredentialKey names one of the entries the client persists between requests
type CredentialKey string

const (
	AccessTokenKey  CredentialKey = "access_token"
	RefreshTokenKey CredentialKey = "refresh_token"
	UserKey         CredentialKey = "user"
	SchoolCodeKey   CredentialKey = "school_code"
)

// AllCredentialKeys lists every entry that is cleared together on logout or a failed refresh
var AllCredentialKeys []CredentialKey = []CredentialKey{AccessTokenKey, RefreshTokenKey, UserKey, SchoolCodeKey}

func (k CredentialKey) String() string {
	return string(k)
}

// StoredCredential is the representation of a single credential entry in persistent stores
type StoredCredential struct {
	Value     string
	UpdatedAt time.Time
}

// FlexibleID accepts both numeric and string identifiers from the backend and writes them
// back in the form they were received, so a cached profile matches the backend's payload.
type FlexibleID struct {
	value   string
	numeric bool
}

func StringID(value string) FlexibleID {
	return FlexibleID{value: value}
}

func NumericID(value int64) FlexibleID {
	return FlexibleID{value: strconv.FormatInt(value, 10), numeric: true}
}

func (f FlexibleID) String() string {
	return f.value
}

func (f FlexibleID) IsNumeric() bool {
	return f.numeric
}

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FlexibleID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("an id must be a string or a number, got %s", string(data))
	}
	*f = FlexibleID{value: n.String(), numeric: true}
	return nil
}

func (f FlexibleID) MarshalJSON() ([]byte, error) {
	if f.numeric {
		return []byte(f.value), nil
	}
	return json.Marshal(f.value)
}

func (f FlexibleID) MarshalYAML() (any, error) {
	if f.numeric {
		return json.Number(f.value).Int64()
	}
	return f.value, nil
}

// UserProfile is the cached user returned by the login endpoint. Fields the client does not
// know about are kept in Extra so that the cached profile round-trips.
type UserProfile struct {
	ID         FlexibleID     `json:"id" yaml:"id"`
	Username   string         `json:"username" yaml:"username"`
	Email      string         `json:"email,omitempty" yaml:"email,omitempty"`
	FirstName  string         `json:"first_name,omitempty" yaml:"firstName,omitempty"`
	LastName   string         `json:"last_name,omitempty" yaml:"lastName,omitempty"`
	Role       string         `json:"role,omitempty" yaml:"role,omitempty"`
	SchoolCode string         `json:"school_code,omitempty" yaml:"schoolCode,omitempty"`
	Extra      map[string]any `json:"-" yaml:"extra,omitempty"`
}

func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, known := range []string{"id", "username", "email", "first_name", "last_name", "role", "school_code"} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	*u = UserProfile(p)
	return nil
}

func (u UserProfile) MarshalJSON() ([]byte, error) {
	type plain UserProfile
	base, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return base, nil
	}
	merged := map[string]any{}
	for k, v := range u.Extra {
		merged[k] = v
	}
	var known map[string]any
	decoder := json.NewDecoder(bytes.NewReader(base))
	decoder.UseNumber()
	if err := decoder.Decode(&known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (u UserProfile) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
