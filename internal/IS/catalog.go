package IS

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const catalogPrefix = "vtab/"

// Definition is the persisted form of a virtual table. The arguments are
// kept verbatim so the module can recompile the table when it is
// reattached.
type Definition struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Module    string    `json:"module"`
	Args      []string  `json:"args"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNoDefinition is returned when a name has no persisted definition.
var ErrNoDefinition = errors.New("no such virtual table definition")

// Catalog persists virtual table definitions in BadgerDB, keyed by the
// lower-cased table name.
type Catalog struct {
	db *badger.DB
}

// OpenCatalog opens a catalog in dir. An empty dir opens an in-memory
// catalog that is discarded on Close.
func OpenCatalog(dir string) (*Catalog, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

func catalogKey(name string) []byte {
	return []byte(catalogPrefix + strings.ToLower(name))
}

// Put stores def. A definition without an ID is assigned a new one.
func (c *Catalog) Put(def *Definition) error {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(catalogKey(def.Name), data)
	})
}

// Get returns the definition stored for name.
func (c *Catalog) Get(name string) (*Definition, error) {
	var def Definition
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &def)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoDefinition
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// Delete removes the definition stored for name.
func (c *Catalog) Delete(name string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(catalogKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoDefinition
			}
			return err
		}
		return txn.Delete(catalogKey(name))
	})
}

// Rename moves a definition to a new name, keeping its identity.
func (c *Catalog) Rename(oldName, newName string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey(oldName))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoDefinition
		}
		if err != nil {
			return err
		}
		var def Definition
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &def)
		}); err != nil {
			return err
		}
		if _, err := txn.Get(catalogKey(newName)); err == nil && !strings.EqualFold(oldName, newName) {
			return fmt.Errorf("there is already a table named %s", newName)
		}
		def.Name = newName
		data, err := json.Marshal(&def)
		if err != nil {
			return err
		}
		if err := txn.Delete(catalogKey(oldName)); err != nil {
			return err
		}
		return txn.Set(catalogKey(newName), data)
	})
}

// List returns every stored definition ordered by name.
func (c *Catalog) List() ([]*Definition, error) {
	var defs []*Definition
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(catalogPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var def Definition
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &def)
			}); err != nil {
				return err
			}
			defs = append(defs, &def)
		}
		return nil
	})
	return defs, err
}

// Close closes the underlying store.
func (c *Catalog) Close() error {
	return c.db.Close()
}
