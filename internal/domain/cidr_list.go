package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/netip"
)

// CIDRList stores a slice of CIDR strings inside a JSON column.
type CIDRList []string

// CIDRListFromPrefixes renders prefixes into their canonical text form.
func CIDRListFromPrefixes(prefixes []netip.Prefix) CIDRList {
	if len(prefixes) == 0 {
		return nil
	}
	out := make(CIDRList, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}

// Value implements driver.Valuer so CIDRList can be stored as JSON.
func (c CIDRList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return []byte("[]"), nil
	}

	data, err := json.Marshal([]string(c))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Scan implements sql.Scanner to hydrate the CIDRList from the database.
func (c *CIDRList) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return c.unmarshal(v)
	case string:
		return c.unmarshal([]byte(v))
	default:
		return fmt.Errorf("domain.CIDRList: unsupported type %T", value)
	}
}

func (c *CIDRList) unmarshal(data []byte) error {
	if len(data) == 0 {
		*c = nil
		return nil
	}

	var parsed []string
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Prefixes re-parses the stored strings back into prefixes.
func (c CIDRList) Prefixes() ([]netip.Prefix, error) {
	if len(c) == 0 {
		return nil, nil
	}
	out := make([]netip.Prefix, len(c))
	for i, raw := range c {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
