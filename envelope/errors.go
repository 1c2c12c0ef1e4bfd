package envelope

import "errors"

var (
	ErrKeyFormat = errors.New("envelope: invalid key")
	ErrInput     = errors.New("envelope: missing input")
	ErrEncoding  = errors.New("envelope: encoding failed")
	ErrFormat    = errors.New("envelope: malformed envelope")
	// ErrIntegrity covers key unwrap failures and tag mismatches. No plaintext
	// is ever returned alongside it.
	ErrIntegrity = errors.New("envelope: integrity check failed")
)
