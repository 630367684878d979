package session

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"s7link/pkg/plc"
	"s7link/pkg/runtime"
)

// Item names a tag and, for writes, the value to store. Value may be a
// runtime.Value or loosely typed input such as decoded JSON or YAML.
type Item struct {
	Name    string      `json:"name,omitempty" mapstructure:"name"`
	Address string      `json:"address" mapstructure:"address"`
	Value   interface{} `json:"value,omitempty" mapstructure:"value"`
}

// DecodeItems accepts a list of maps with name, address and value keys, or a
// list of plain address strings.
func DecodeItems(input interface{}) ([]Item, error) {
	if input == nil {
		return nil, nil
	}
	if addresses, ok := input.([]string); ok {
		items := make([]Item, 0, len(addresses))
		for _, a := range addresses {
			items = append(items, Item{Name: a, Address: a})
		}
		return items, nil
	}
	raw, ok := input.([]interface{})
	if !ok {
		var items []Item
		if err := mapstructure.Decode(input, &items); err != nil {
			return nil, errors.Wrap(err, "decode items")
		}
		return defaultNames(items)
	}

	items := make([]Item, 0, len(raw))
	for i, r := range raw {
		if s, ok := r.(string); ok {
			items = append(items, Item{Address: s})
			continue
		}
		var item Item
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &item,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(r); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		items = append(items, item)
	}
	return defaultNames(items)
}

func defaultNames(items []Item) ([]Item, error) {
	for i := range items {
		if items[i].Address == "" {
			return nil, errors.Wrapf(runtime.ErrInvalidAddress, "item %d has no address", i)
		}
		if items[i].Name == "" {
			items[i].Name = items[i].Address
		}
	}
	return items, nil
}

// valueFor converts the loosely typed value of item to the type of a.
func valueFor(item Item, a plc.Address) (runtime.Value, error) {
	v, err := runtime.FromInterface(item.Value, a.Type(), a.Elements(), a.StringLength())
	if err != nil {
		return nil, errors.Wrapf(err, "%s", item.Name)
	}
	return v, nil
}
