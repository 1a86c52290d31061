package domain

// TreeNode is an element placed in the display tree.
type TreeNode struct {
	UUID     string      `json:"uuid" yaml:"uuid"`
	Type     string      `json:"type" yaml:"type"`
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Position is a cell of the layout grid. Both coordinates start at 1.
type Position struct {
	HorizontalPos int `json:"horizontalPos" yaml:"horizontal_pos"`
	VerticalPos   int `json:"verticalPos" yaml:"vertical_pos"`
}

// Layout maps element ids to grid positions.
type Layout map[string]Position

// Orientation selects which axis the tree grows along.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)
