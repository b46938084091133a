package types

// MoveDocPageRequest reparents a documentation page. A nil/omitted
// ParentID moves the page to the tree root.
type MoveDocPageRequest struct {
	ParentID *string `json:"parent_id"`
}
