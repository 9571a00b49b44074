// Package repository holds the gorm-backed stores. Stores return gorm
// errors unchanged (gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey); the
// services layer classifies them.
package repository

import "errors"

// ErrInvalidLink is returned when a notification does not carry exactly one
// link.
var ErrInvalidLink = errors.New("notification must link exactly one appointment or message")
