package stdlib

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/soft_delete"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

const dbigExt = ".dbig"

// DbigEntry is one value stored under the key Name in a .dbig file. A key holding
// a list has one entry per element, ordered by Position.
type DbigEntry struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"index:idx_dbig_name"`
	Position int
	Value    string
	Deleted  soft_delete.DeletedAt `gorm:"softDelete:flag;default:0"`
}

func (DbigEntry) TableName() string {
	return "dbig_entry"
}

// dbigLocks serialises writers of the same file within the process.
var dbigLocks sync.Map

func dbigLock(path string) *sync.Mutex {
	mu, _ := dbigLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// openDbig opens and migrates a .dbig store. The caller closes it.
func openDbig(path string) (*gorm.DB, func(), error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if err := db.AutoMigrate(&DbigEntry{}); err != nil {
		closeFn()
		return nil, nil, err
	}
	return db, closeFn, nil
}

// registerDbig registers the dbig verb and its actions: get, set, remove,
// check.
func (r *Registry) registerDbig() {
	r.Register(token.Dbig, dbigVerb)
}

func dbigVerb(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	switch peek(toks, j).Kind {
	case token.Get:
		dbigGet(h, i, toks, j)
	case token.Set:
		dbigSet(h, i, toks, j)
	case token.Remove:
		dbigRemove(h, i, toks, j)
	case token.Check:
		dbigCheck(h, i, toks, j)
	default:
		abandon(i, toks)
	}
}

// dbigFile reads the @"file.dbig" target. Other extensions are refused.
func dbigFile(h types.Host, i *int, toks []token.Token, at int, loud bool) (string, int, bool) {
	file, end, ok := atValue(h, toks, at)
	if !ok {
		abandon(i, toks)
		return "", end, false
	}
	if !strings.HasSuffix(file, dbigExt) {
		if loud {
			fmt.Fprintln(h.Stdout(), "Big Error: DBB only works with .dbig files!")
		}
		abandon(i, toks)
		return "", end, false
	}
	return file, end, true
}

// dbigWithStore opens file, runs fn and turns failures into bugs.
func dbigWithStore(h types.Host, file string, fn func(db *gorm.DB) error) bool {
	db, closeFn, err := openDbig(file)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("Dbig Error: %v", err))
		return false
	}
	defer closeFn()
	if err := fn(db); err != nil {
		h.RaiseBug(fmt.Sprintf("Dbig Error: %v", err))
		return false
	}
	return true
}

func dbigValues(db *gorm.DB, key string) ([]string, error) {
	var values []string
	err := db.Model(&DbigEntry{}).Where("name = ?", key).Order("position").Pluck("value", &values).Error
	return values, err
}

// dbig get "Key" @"file.dbig" & set as {V} / & set as list {L}
func dbigGet(h types.Host, i *int, toks []token.Token, j int) {
	key, end := text(h, toks, j+1)
	file, end, ok := dbigFile(h, i, toks, end+1, true)
	if !ok {
		return
	}
	var values []string
	if !dbigWithStore(h, file, func(db *gorm.DB) (err error) {
		values, err = dbigValues(db, key)
		return err
	}) {
		*i = end
		return
	}
	bind(h, i, toks, end, values...)
}

// dbig set "Key" as V @"file.dbig". A JSON list value, or "as list {L}",
// stores one entry per element.
func dbigSet(h types.Host, i *int, toks []token.Token, j int) {
	key, end := text(h, toks, j+1)
	if peek(toks, end+1).Kind != token.As {
		abandon(i, toks)
		return
	}
	end += 2
	explicit := false
	if peek(toks, end).Kind == token.List {
		explicit = true
		end++
	}
	raw, end := text(h, toks, end)

	values := []string{raw}
	if explicit || strings.HasPrefix(raw, "[") {
		if arr, ok := types.DecodeList(raw); ok {
			values = values[:0]
			for _, v := range arr {
				values = append(values, types.Render(v))
			}
		}
	}

	file, end, ok := dbigFile(h, i, toks, end+1, true)
	if !ok {
		return
	}
	*i = end
	mu := dbigLock(file)
	mu.Lock()
	defer mu.Unlock()
	dbigWithStore(h, file, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("name = ?", key).Delete(&DbigEntry{}).Error; err != nil {
				return err
			}
			entries := make([]DbigEntry, len(values))
			for k, v := range values {
				entries[k] = DbigEntry{Name: key, Position: k, Value: v}
			}
			if len(entries) == 0 {
				return nil
			}
			return tx.Create(&entries).Error
		})
	})
}

// dbig remove "Key" @"file.dbig"
func dbigRemove(h types.Host, i *int, toks []token.Token, j int) {
	key, end := text(h, toks, j+1)
	file, end, ok := dbigFile(h, i, toks, end+1, true)
	if !ok {
		return
	}
	*i = end
	mu := dbigLock(file)
	mu.Lock()
	defer mu.Unlock()
	dbigWithStore(h, file, func(db *gorm.DB) error {
		return db.Where("name = ?", key).Delete(&DbigEntry{}).Error
	})
}

// dbigCheck handles three forms:
//
//	dbig check "Key" @"file.dbig"            key exists
//	dbig check "Item" of "Key" @"file.dbig"  list under Key holds Item
//	dbig check keys value < 10 @"file.dbig"  keys with a matching value
func dbigCheck(h types.Host, i *int, toks []token.Token, j int) {
	if peek(toks, j+1).Kind == token.Keys {
		dbigScan(h, i, toks, j+1)
		return
	}
	item, end := text(h, toks, j+1)
	key := item
	listSearch := false
	if peek(toks, end+1).Kind == token.Of {
		listSearch = true
		key, end = text(h, toks, end+2)
	}
	file, end, ok := dbigFile(h, i, toks, end+1, false)
	if !ok {
		return
	}
	found := false
	if !dbigWithStore(h, file, func(db *gorm.DB) error {
		q := db.Model(&DbigEntry{}).Where("name = ?", key)
		if listSearch {
			q = q.Where("value = ?", item)
		}
		var n int64
		err := q.Count(&n).Error
		found = n > 0
		return err
	}) {
		*i = end
		return
	}
	bind(h, i, toks, end, boolText(found))
}

// dbigScan returns every key with a value satisfying "value OP target".
// Numeric values compare numerically; other values only match "=".
func dbigScan(h types.Host, i *int, toks []token.Token, j int) {
	if peek(toks, j+1).Kind != token.Value {
		abandon(i, toks)
		return
	}
	op := peek(toks, j+2).Kind
	target, end := text(h, toks, j+3)
	file, end, ok := dbigFile(h, i, toks, end+1, false)
	if !ok {
		return
	}
	targetNum, targetIsNum := types.ParseNumber(target)

	var entries []DbigEntry
	if !dbigWithStore(h, file, func(db *gorm.DB) error {
		return db.Order("id").Find(&entries).Error
	}) {
		*i = end
		return
	}

	var keys []string
	seen := make(map[string]bool)
	for _, e := range entries {
		match := false
		if n, ok := types.ParseNumber(e.Value); ok && targetIsNum {
			switch op {
			case token.Greater:
				match = n > targetNum
			case token.Less:
				match = n < targetNum
			case token.Assign:
				match = math.Abs(n-targetNum) < 0.0001
			}
		} else if op == token.Assign {
			match = e.Value == target
		}
		if match && !seen[e.Name] {
			seen[e.Name] = true
			keys = append(keys, e.Name)
		}
	}
	bind(h, i, toks, end, keys...)
}
