package stdlib

import (
	"fmt"
	"os"
	"sort"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerList registers the list verb and its actions:
// add, remove, cut, sort, insert, folder.
func (r *Registry) registerList() {
	r.Register(token.List, listVerb)
}

func listVerb(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	switch peek(toks, j).Kind {
	case token.Add:
		listAdd(h, i, toks, j)
	case token.Remove:
		listRemove(h, i, toks, j)
	case token.Cut:
		listCut(h, i, toks, j)
	case token.Sort:
		listSort(h, i, toks, j)
	case token.Insert:
		listInsert(h, i, toks, j)
	case token.Folder:
		listFolder(h, i, toks, j)
	default:
		abandon(i, toks)
	}
}

// updateList rewrites the JSON array stored in name. Values that are not
// arrays are left alone.
func updateList(h types.Host, name string, fn func([]any) []any) {
	arr, ok := types.DecodeList(varOr(h, name, "[]"))
	if !ok {
		return
	}
	h.Set(name, types.EncodeJSON(fn(arr)))
}

// list add "Item" [to] @{L}
func listAdd(h types.Host, i *int, toks []token.Token, j int) {
	item, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind == token.To {
		end++
	}
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	updateList(h, name, func(arr []any) []any { return append(arr, item) })
}

// list remove "Item" [from] @{L} drops every element equal to the item.
func listRemove(h types.Host, i *int, toks []token.Token, j int) {
	item, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind == token.From {
		end++
	}
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	updateList(h, name, func(arr []any) []any {
		kept := arr[:0]
		for _, v := range arr {
			if s, isStr := v.(string); isStr && s == item {
				continue
			}
			kept = append(kept, v)
		}
		return kept
	})
}

// list cut @N @{L} removes the element at 1-based position N.
func listCut(h types.Host, i *int, toks []token.Token, j int) {
	pos, end, ok := atValue(h, toks, j+1)
	if !ok {
		abandon(i, toks)
		return
	}
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	k := index(pos)
	updateList(h, name, func(arr []any) []any {
		if k < len(arr) {
			arr = append(arr[:k], arr[k+1:]...)
		}
		return arr
	})
}

// list sort @{L} orders elements by their text.
func listSort(h types.Host, i *int, toks []token.Token, j int) {
	name, end, ok := atName(h, toks, j+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	updateList(h, name, func(arr []any) []any {
		sort.SliceStable(arr, func(a, b int) bool {
			return types.Render(arr[a]) < types.Render(arr[b])
		})
		return arr
	})
}

// list insert "Item" [at] [on] @N @{L} inserts before 1-based position N,
// appending when N is past the end.
func listInsert(h types.Host, i *int, toks []token.Token, j int) {
	item, end := value(h, toks, j+1)
	for k := peek(toks, end+1).Kind; k == token.AtWord || k == token.On; k = peek(toks, end+1).Kind {
		end++
	}
	pos, end, ok := atValue(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	k := index(pos)
	updateList(h, name, func(arr []any) []any {
		if k > len(arr) {
			k = len(arr)
		}
		arr = append(arr, nil)
		copy(arr[k+1:], arr[k:])
		arr[k] = item
		return arr
	})
}

// list folder @"path" & set as list {Files} lists directory entries in
// name order.
func listFolder(h types.Host, i *int, toks []token.Token, j int) {
	dir, end, ok := atValue(h, toks, j+1)
	if !ok {
		abandon(i, toks)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("List Folder Error: %v", err))
		bind(h, i, toks, end, types.Nothing)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	bind(h, i, toks, end, names...)
}

// listItem returns the element at 1-based position pos of a JSON array.
func listItem(raw, pos string) (string, bool) {
	arr, ok := types.DecodeList(raw)
	if !ok {
		return "", false
	}
	k := index(pos)
	if k >= len(arr) {
		return types.Nothing, true
	}
	return types.Render(arr[k]), true
}

// listLen is the element count of a JSON array, or 0.
func listLen(raw string) int {
	arr, _ := types.DecodeList(raw)
	return len(arr)
}
