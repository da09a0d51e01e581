// Package apierrors contains all common errors used by the API client and its stores.
package apierrors

import "fmt"

var ErrCredentialNotFound = fmt.Errorf("the credential cannot be found")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
var ErrMissingRefreshToken = fmt.Errorf("no refresh token is available")
var ErrRefreshFailed = fmt.Errorf("refreshing the access token failed")
var ErrNotAuthenticated = fmt.Errorf("the client is not authenticated")
var ErrTokenParse = fmt.Errorf("cannot parse the token")
var ErrTokenExpired = fmt.Errorf("the token is expired")
var ErrInvalidRefreshResponse = fmt.Errorf("the refresh response does not contain an access token")
