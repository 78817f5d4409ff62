package partition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

const schemaPrefix = "du_"

// schemaName maps a key to its Postgres schema. The tenant hash comes first
// so every partition of a tenant shares a prefix.
func schemaName(key Key) string {
	return tenantPrefix(key.Tenant) + fmt.Sprintf("%016x", xxhash.Sum64String(key.Actor))
}

func tenantPrefix(t shared.Tenant) string {
	return schemaPrefix + fmt.Sprintf("%016x", xxhash.Sum64String(t.Site+"\x1f"+t.Company)) + "_"
}

// schemaComment is stored on the schema so discovery can recover the key.
func schemaComment(key Key) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeSchema rebuilds the key of a schema and checks it against the name.
func decodeSchema(name, comment string) (Key, bool) {
	if !strings.HasPrefix(name, schemaPrefix) || comment == "" {
		return Key{}, false
	}
	var key Key
	if err := json.Unmarshal([]byte(comment), &key); err != nil {
		return Key{}, false
	}
	key = NewKey(key.Tenant, key.Actor)
	if !key.Valid() || schemaName(key) != name {
		return Key{}, false
	}
	return key, true
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
