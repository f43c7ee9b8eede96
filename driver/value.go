package driver

import (
	"database/sql/driver"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// toDriverValue converts a DS.Value to a database/sql argument.
// Booleans are passed as 0/1 integers.
func toDriverValue(v DS.Value) driver.Value {
	switch v.Type {
	case DS.TypeInt, DS.TypeBool:
		return v.Int
	case DS.TypeFloat:
		return v.Float
	case DS.TypeString:
		return v.Str
	case DS.TypeBytes:
		if v.Bytes == nil {
			return []byte{}
		}
		return v.Bytes
	default:
		return nil
	}
}

// fromDriverValue converts a scanned column value. database/sql has already
// copied any []byte into memory owned by the statement's row buffer.
func fromDriverValue(v interface{}) DS.Value {
	return DS.FromInterface(v)
}
