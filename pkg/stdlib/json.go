package stdlib

import (
	"strings"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerJSON registers the map/JSON conversion verbs: pack, unpack.
func (r *Registry) registerJSON() {
	r.Register(token.Pack, jsonPack)
	r.Register(token.Unpack, jsonUnpack)
}

// jsonPack hands a map over as JSON text: pack {M} as json & set as {J}.
func jsonPack(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	name := h.BracedName(&j, toks)
	if peek(toks, j+1).Kind != token.As || peek(toks, j+2).Kind != token.Json {
		abandon(i, toks)
		return
	}
	end := j + 2
	src := varOr(h, name, "{}")
	if !strings.HasPrefix(strings.TrimSpace(src), "{") {
		h.RaiseBug("Pack Error: Source is not a Map")
		*i = lineEnd(toks, end)
		return
	}
	bind(h, i, toks, end, src)
}

// jsonUnpack validates JSON text and binds it as a map: unpack X as map &
// set as {M}. Invalid text raises a bug and binds an empty map.
func jsonUnpack(h types.Host, i *int, toks []token.Token) {
	src, end := text(h, toks, *i+1)
	if peek(toks, end+1).Kind != token.As || peek(toks, end+2).Kind != token.Map {
		abandon(i, toks)
		return
	}
	end += 2
	if _, ok := types.DecodeJSON(src); !ok {
		h.RaiseBug("Unpack Error: Invalid JSON String")
		bind(h, i, toks, end, "{}")
		return
	}
	bind(h, i, toks, end, src)
}
