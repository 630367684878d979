package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"s7link/cmd/s7link/options"
	"s7link/pkg/plc"
	"s7link/pkg/session"
)

// readItems are the configured tags followed by the addresses on the command
// line.
func readItems(o *options.Options, args []string) ([]session.Item, error) {
	items := make([]session.Item, 0, len(o.Tags)+len(args))
	for _, tag := range o.Tags {
		items = append(items, session.Item{Name: tag.Name, Address: tag.Address})
	}
	for _, arg := range args {
		items = append(items, session.Item{Name: arg, Address: arg})
	}
	if len(items) == 0 {
		return nil, errors.Wrap(plc.ErrEmptyRequest, "name tags in the config file or as arguments")
	}
	return items, nil
}

// writeItems are the configured tags that carry a value, then every
// TAG=VALUE argument. TAG is a configured tag name or an address, a VALUE
// with commas is an array.
func writeItems(o *options.Options, args []string) ([]session.Item, error) {
	byName := make(map[string]session.Item, len(o.Tags))
	var items []session.Item
	for _, tag := range o.Tags {
		byName[tag.Name] = tag
		if tag.Value != nil {
			items = append(items, tag)
		}
	}
	for _, arg := range args {
		i := strings.Index(arg, "=")
		if i <= 0 {
			return nil, errors.Errorf("%q is not TAG=VALUE", arg)
		}
		key, raw := arg[:i], arg[i+1:]
		item := session.Item{Name: key, Address: key}
		if tag, ok := byName[key]; ok {
			item.Address = tag.Address
		}
		if strings.Contains(raw, ",") {
			parts := strings.Split(raw, ",")
			values := make([]interface{}, 0, len(parts))
			for _, p := range parts {
				values = append(values, strings.TrimSpace(p))
			}
			item.Value = values
		} else {
			item.Value = raw
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.Wrap(plc.ErrEmptyRequest, "give TAG=VALUE arguments or tags with values")
	}
	return items, nil
}

type printedItem struct {
	Name    string      `json:"name"`
	Address string      `json:"address"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func printResponse(w io.Writer, format string, r *plc.Response) error {
	items := make([]printedItem, 0, len(r.Items))
	for _, item := range r.Items {
		p := printedItem{Name: item.Name, Address: item.Address}
		if item.Value != nil {
			p.Value = item.Value.Interface()
		}
		if item.Err != nil {
			p.Error = item.Err.Error()
		}
		items = append(items, p)
	}

	if format == options.OutputJSON {
		return json.NewEncoder(w).Encode(items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tADDRESS\tVALUE")
	for i, p := range items {
		value := "ok"
		switch {
		case len(p.Error) > 0:
			value = "error: " + p.Error
		case r.Items[i].Value != nil:
			value = r.Items[i].Value.String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Address, value)
	}
	return tw.Flush()
}
