package keystore

import "errors"

var (
	ErrKeyNotFound            = errors.New("keystore: key not found")
	ErrKeyMaterialCorrupt     = errors.New("keystore: key material corrupt")
	ErrSecureStorageUnavailable = errors.New("keystore: secure storage unavailable")
	ErrIoFailure              = errors.New("keystore: io failure")
)
