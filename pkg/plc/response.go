package plc

import "s7link/pkg/runtime"

type ResponseItem struct {
	Name    string
	Address string
	Value   runtime.Value
	Err     error
}

// Response lists the outcome per item in request order. Write responses
// carry errors only.
type Response struct {
	Kind  RequestKind
	Items []ResponseItem
}

func newResponse(kind RequestKind, items []*Item) *Response {
	r := &Response{Kind: kind, Items: make([]ResponseItem, 0, len(items))}
	for _, item := range items {
		ri := ResponseItem{Name: item.Name, Address: item.Address.String(), Err: item.Err}
		if kind == ReadRequestKind && item.Err == nil {
			ri.Value = item.Value
		}
		r.Items = append(r.Items, ri)
	}
	return r
}

// Get returns the first item called name.
func (r *Response) Get(name string) (ResponseItem, bool) {
	for _, item := range r.Items {
		if item.Name == name {
			return item, true
		}
	}
	return ResponseItem{}, false
}

// Values maps item names to the values read, failed items are left out.
func (r *Response) Values() map[string]runtime.Value {
	m := make(map[string]runtime.Value, len(r.Items))
	for _, item := range r.Items {
		if item.Err == nil && item.Value != nil {
			m[item.Name] = item.Value
		}
	}
	return m
}
