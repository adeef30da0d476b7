package rtti

// EnumItem describes one value of an enum property.
type EnumItem struct {
	ID          string
	Value       int
	Name        string
	Description string
}

// EnumItemsFunc produces the item list for one instance, filtered by its
// current state.
type EnumItemsFunc func(p Ptr) []EnumItem

// EnumDef is either a static item list fixed at registration or a dynamic
// callback evaluated per call. Dynamic wins when both are set.
type EnumDef struct {
	Static  []EnumItem
	Dynamic EnumItemsFunc
}

// Items returns the items valid for p.
func (e *EnumDef) Items(p Ptr) []EnumItem {
	if e == nil {
		return nil
	}
	if e.Dynamic != nil {
		return e.Dynamic(p)
	}
	return e.Static
}

// ByID finds the item with identifier id.
func (e *EnumDef) ByID(p Ptr, id string) (EnumItem, bool) {
	for _, item := range e.Items(p) {
		if item.ID == id {
			return item, true
		}
	}
	return EnumItem{}, false
}

// ByValue finds the item with the given stored value.
func (e *EnumDef) ByValue(p Ptr, v int) (EnumItem, bool) {
	for _, item := range e.Items(p) {
		if item.Value == v {
			return item, true
		}
	}
	return EnumItem{}, false
}
