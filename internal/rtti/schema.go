package rtti

import (
	"encoding/json"

	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// StructInfo is the serializable description of a StructDef. It carries
// everything the serialization layer needs to round-trip values without any
// knowledge of native memory layout.
type StructInfo struct {
	ID       string     `json:"id"`
	Base     string     `json:"base,omitempty"`
	NameProp string     `json:"name_prop,omitempty"`
	Dynamic  bool       `json:"dynamic,omitempty"`
	Props    []PropInfo `json:"props"`
	Fns      []FnInfo   `json:"functions,omitempty"`
}

// PropInfo describes one PropDef.
type PropInfo struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Flags    string          `json:"flags,omitempty"`
	ArrayLen int             `json:"array_len,omitempty"`
	Target   string          `json:"target,omitempty"`
	Enum     []string        `json:"enum,omitempty"`
	Default  json.RawMessage `json:"default,omitempty"`
}

// FnInfo describes one FnDef.
type FnInfo struct {
	ID        string   `json:"id"`
	Params    []string `json:"params,omitempty"`
	Required  []string `json:"required,omitempty"`
	Return    string   `json:"return,omitempty"`
	Extension bool     `json:"extension,omitempty"`
}

// Schema describes every registered struct in registration order. Only the
// struct's own props and functions are listed; inherited ones are reachable
// through Base.
func (r *Registry) Schema() ([]StructInfo, error) {
	out := make([]StructInfo, 0, len(r.order))
	for _, s := range r.order {
		info := StructInfo{ID: s.ID, NameProp: s.NameProp, Dynamic: s.dynamic, Props: []PropInfo{}}
		if s.Base != nil {
			info.Base = s.Base.ID
		}
		for _, p := range s.props {
			pi := PropInfo{ID: p.ID, Kind: p.Kind.String(), Flags: p.Flags.String(), ArrayLen: p.ArrayLen}
			if p.Target != nil {
				pi.Target = p.Target.ID
			}
			if p.Enum != nil {
				for _, item := range p.Enum.Static {
					pi.Enum = append(pi.Enum, item.ID)
				}
			}
			if p.Kind != KindCollection && p.Kind != KindPointer {
				raw, err := ctyjson.Marshal(p.Default, p.Type())
				if err != nil {
					return nil, err
				}
				pi.Default = raw
			}
			info.Props = append(info.Props, pi)
		}
		for _, f := range s.fns {
			fi := FnInfo{ID: f.ID}
			if f.Return != KindInvalid {
				fi.Return = f.Return.String()
			}
			_, fi.Extension = f.Callee.(ExtensionCallee)
			for _, pd := range f.Params {
				fi.Params = append(fi.Params, pd.ID)
				if pd.Required() {
					fi.Required = append(fi.Required, pd.ID)
				}
			}
			info.Fns = append(info.Fns, fi)
		}
		out = append(out, info)
	}
	return out, nil
}
