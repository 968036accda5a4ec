package demo

import (
	"errors"
	"fmt"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

// Filters accepted by todos.setFilter.
const (
	FilterAll    = "all"
	FilterActive = "active"
	FilterDone   = "done"
)

var errEmptyTitle = errors.New("todo title must not be empty")

// Todos is a todo list. add returns the new item's id.
func Todos() model.Model {
	return model.Model{
		"items":  []any{},
		"nextID": 1,
		"filter": FilterAll,
		"add": model.MutatorWithResult(func(d *state.Draft, payload any) (any, error) {
			title, _ := payload.(string)
			if title == "" {
				return nil, errEmptyTitle
			}
			id := state.Int(d.Get("nextID"))
			d.Append("items", state.Object{"id": id, "title": title, "done": false})
			d.Set("nextID", id+1)
			return id, nil
		}),
		"toggle": model.Mutator(func(d *state.Draft, payload any) error {
			i := indexOf(d, state.Int(payload))
			if i < 0 {
				return fmt.Errorf("no todo with id %v", payload)
			}
			item := d.Get("items").([]any)[i].(state.Object)
			next := state.Object{"id": item["id"], "title": item["title"], "done": item["done"] != true}
			d.SetIndex("items", i, next)
			return nil
		}),
		"remove": model.Mutator(func(d *state.Draft, payload any) error {
			i := indexOf(d, state.Int(payload))
			if i < 0 {
				return fmt.Errorf("no todo with id %v", payload)
			}
			d.RemoveIndex("items", i)
			return nil
		}),
		"clearDone": model.Mutator(func(d *state.Draft, _ any) error {
			d.Filter("items", func(v any) bool { return v.(state.Object)["done"] != true })
			return nil
		}),
		"setFilter": model.Mutator(func(d *state.Draft, payload any) error {
			switch payload {
			case FilterAll, FilterActive, FilterDone:
				d.Set("filter", payload)
				return nil
			}
			return fmt.Errorf("unknown filter %v", payload)
		}),
		"visible": model.Computed(func(deps []any) any {
			items, _ := deps[0].([]any)
			out := []any{}
			for _, v := range items {
				done := v.(state.Object)["done"] == true
				switch deps[1] {
				case FilterActive:
					if done {
						continue
					}
				case FilterDone:
					if !done {
						continue
					}
				}
				out = append(out, v)
			}
			return out
		}, model.Local("items"), model.Local("filter")),
		"remaining": model.Computed(func(deps []any) any {
			n := 0
			items, _ := deps[0].([]any)
			for _, v := range items {
				if v.(state.Object)["done"] != true {
					n++
				}
			}
			return n
		}, model.Local("items")),
	}
}

func indexOf(d *state.Draft, id int) int {
	items, _ := d.Get("items").([]any)
	for i, v := range items {
		if state.Int(v.(state.Object)["id"]) == id {
			return i
		}
	}
	return -1
}
