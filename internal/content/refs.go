package content

import (
	"strconv"
)

// refID extracts a nested-document reference id from a raw payload value.
func refID(v any) ID {
	switch value := v.(type) {
	case string:
		return ID(value)
	case float64:
		return ID(strconv.FormatFloat(value, 'f', -1, 64))
	case int:
		return ID(strconv.Itoa(value))
	case int64:
		return ID(strconv.FormatInt(value, 10))
	case ID:
		return value
	default:
		return ""
	}
}

func isReferenceTo(b Block, id ID) bool {
	if b.Type != TypeNestedDocument || b.Data == nil {
		return false
	}
	return refID(b.Data["id"]) == id
}

// References lists the ids of all nested documents referenced by c, in
// block order.
func References(c Content) []ID {
	var ids []ID
	for _, block := range c.Blocks {
		if block.Type != TypeNestedDocument || block.Data == nil {
			continue
		}
		if id := refID(block.Data["id"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// RenameReferences sets the title of every reference to child. It returns a
// rewritten copy and whether anything changed; c is not modified.
func RenameReferences(c Content, child ID, title string) (Content, bool) {
	out := c.Clone()
	changed := false
	for i, block := range out.Blocks {
		if !isReferenceTo(block, child) {
			continue
		}
		if current, _ := block.Data["title"].(string); current == title {
			continue
		}
		out.Blocks[i].Data["title"] = title
		changed = true
	}
	return out, changed
}

// RemoveReferences drops every reference to child.
func RemoveReferences(c Content, child ID) (Content, bool) {
	out := c.Clone()
	kept := make([]Block, 0, len(out.Blocks))
	for _, block := range out.Blocks {
		if isReferenceTo(block, child) {
			continue
		}
		kept = append(kept, block)
	}
	changed := len(kept) != len(out.Blocks)
	out.Blocks = kept
	return out, changed
}

// InsertReference places a reference to child at index, replacing the block
// already there (the placeholder the editor inserted). An index outside the
// block list appends.
func InsertReference(c Content, index int, child ID, title string) Content {
	out := c.Clone()
	ref := NestedDocument(child, title)
	if index >= 0 && index < len(out.Blocks) {
		out.Blocks[index] = ref
		return out
	}
	out.Blocks = append(out.Blocks, ref)
	return out
}
