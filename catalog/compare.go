package catalog

import (
	"fmt"

	"panelbase/panel"
)

// MaxCompare caps the visual size-comparison view.
const MaxCompare = 4

// CompareSet is the ordered selection of panels for side-by-side comparison.
type CompareSet struct {
	ids []string
}

func (c *CompareSet) IDs() []string {
	return append([]string(nil), c.ids...)
}

func (c *CompareSet) Has(id string) bool {
	for _, existing := range c.ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Add appends a panel to the selection, refusing duplicates and overflow.
func (c *CompareSet) Add(id string) error {
	if c.Has(id) {
		return nil
	}
	if len(c.ids) >= MaxCompare {
		return fmt.Errorf("comparison is limited to %d panels", MaxCompare)
	}
	c.ids = append(c.ids, id)
	return nil
}

func (c *CompareSet) Remove(id string) {
	out := c.ids[:0]
	for _, existing := range c.ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	c.ids = out
}

func (c *CompareSet) Clear() {
	c.ids = nil
}

// Select resolves the selection against a snapshot, keeping selection order
// and dropping ids that no longer exist.
func (c *CompareSet) Select(panels []panel.Panel) []panel.Panel {
	byID := make(map[string]panel.Panel, len(panels))
	for _, p := range panels {
		byID[p.ID] = p
	}

	out := make([]panel.Panel, 0, len(c.ids))
	for _, id := range c.ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
