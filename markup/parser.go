package markup

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var imageClosingsKey = parser.NewContextKey()

// imageParser delegates to goldmark's link parser and remembers the source
// offset of the "]" that closed each image label. Inline nodes carry no
// source position of their own.
type imageParser struct {
	parser.InlineParser
}

func (p *imageParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	_, segment := block.Position()
	node := p.InlineParser.Parse(parent, block, pc)
	if img, ok := node.(*ast.Image); ok {
		closings, _ := pc.Get(imageClosingsKey).(map[*ast.Image]int)
		if closings == nil {
			closings = map[*ast.Image]int{}
			pc.Set(imageClosingsKey, closings)
		}
		closings[img] = segment.Start
	}
	return node
}

func (p *imageParser) CloseBlock(parent ast.Node, block text.Reader, pc parser.Context) {
	if closer, ok := p.InlineParser.(parser.CloseBlocker); ok {
		closer.CloseBlock(parent, block, pc)
	}
}

func imageClosings(pc parser.Context) map[*ast.Image]int {
	closings, _ := pc.Get(imageClosingsKey).(map[*ast.Image]int)
	return closings
}
