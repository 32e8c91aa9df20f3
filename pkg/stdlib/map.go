package stdlib

import (
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerMapVerbs registers the map verb and its actions:
// set, get, check, remove, merge.
func (r *Registry) registerMapVerbs() {
	r.Register(token.Map, mapVerb)
}

func mapVerb(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	switch peek(toks, j).Kind {
	case token.Set:
		mapSet(h, i, toks, j)
	case token.Get:
		mapGet(h, i, toks, j)
	case token.Check:
		mapCheck(h, i, toks, j)
	case token.Remove:
		mapRemove(h, i, toks, j)
	case token.Merge:
		mapMerge(h, i, toks, j)
	default:
		abandon(i, toks)
	}
}

// updateMap rewrites the JSON object stored in name. Values that are not
// objects are left alone.
func updateMap(h types.Host, name string, fn func(map[string]any)) {
	m, ok := types.DecodeMap(varOr(h, name, "{}"))
	if !ok {
		return
	}
	fn(m)
	h.Set(name, types.EncodeJSON(m))
}

// map set "Key" as "Val" @{M}
func mapSet(h types.Host, i *int, toks []token.Token, j int) {
	key, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind != token.As {
		abandon(i, toks)
		return
	}
	val, end := value(h, toks, end+2)
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	updateMap(h, name, func(m map[string]any) { m[key] = val })
}

// map get "Key" of {M} & set as {V}
func mapGet(h types.Host, i *int, toks []token.Token, j int) {
	key, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind != token.Of {
		abandon(i, toks)
		return
	}
	end += 2
	name := h.BracedName(&end, toks)
	if _, ok := types.DecodeMap(varOr(h, name, "{}")); !ok {
		*i = end
		return
	}
	bind(h, i, toks, end, types.MapValue(varOr(h, name, "{}"), key))
}

// map check "Key" of {M} & set as {Found}
func mapCheck(h types.Host, i *int, toks []token.Token, j int) {
	key, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind != token.Of {
		abandon(i, toks)
		return
	}
	end += 2
	name := h.BracedName(&end, toks)
	_, found := types.ObjectField(varOr(h, name, "{}"), key)
	bind(h, i, toks, end, boolText(found))
}

// map remove "Key" [from] @{M}
func mapRemove(h types.Host, i *int, toks []token.Token, j int) {
	key, end := value(h, toks, j+1)
	if peek(toks, end+1).Kind == token.From {
		end++
	}
	name, end, ok := atName(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	updateMap(h, name, func(m map[string]any) { delete(m, key) })
}

// map merge {Src} @{Dst} copies every entry of Src into Dst.
func mapMerge(h types.Host, i *int, toks []token.Token, j int) {
	j++
	srcName := h.BracedName(&j, toks)
	dst, end, ok := atName(h, toks, j+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	src, ok := types.DecodeMap(varOr(h, srcName, "{}"))
	if !ok {
		return
	}
	updateMap(h, dst, func(m map[string]any) {
		for k, v := range src {
			m[k] = v
		}
	})
}
