// Package partition resolves per-actor data partitions and enumerates the
// partitions belonging to a tenant.
package partition

import (
	"errors"
	"strings"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// ErrInvalidKey indicates a key without tenant or actor.
var ErrInvalidKey = errors.New("partition: invalid key")

// Key identifies the partition holding one actor's records within a tenant.
// Physical naming is private to each Store.
type Key struct {
	Tenant shared.Tenant `json:"tenant"`
	Actor  string        `json:"actor"`
}

// NewKey builds a Key from trimmed parts.
func NewKey(tenant shared.Tenant, actor string) Key {
	return Key{Tenant: shared.NewTenant(tenant.Site, tenant.Company), Actor: strings.TrimSpace(actor)}
}

// Valid reports whether the key addresses a concrete partition.
func (k Key) Valid() bool {
	return k.Tenant.Valid() && k.Actor != ""
}

func (k Key) String() string {
	return k.Tenant.String() + "/" + k.Actor
}
