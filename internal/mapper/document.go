// Package mapper translates one raw monthly filing into flat FundRecords.
// The field set is declared as struct tags on domain.FundRecord; one
// generic loop interprets the schema, so there is no per-field extraction
// code.
package mapper

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Document is the parsed filing tree. It is opaque outside this package:
// only the mapping loop reads it, via path selectors from the schema.
type Document struct {
	root *node
}

type node struct {
	name     string
	text     string
	children []*node
}

// Lookup resolves a schema path ("NODE" or "GROUP/NODE") anywhere in the
// document, the way the original filings nest groups at varying depths.
// The second result is false when no matching node exists.
func (d *Document) Lookup(path string) (string, bool) {
	segments := strings.Split(path, "/")
	n := d.root.findDescendant(segments[0])
	for _, seg := range segments[1:] {
		if n == nil {
			break
		}
		n = n.findChild(seg)
	}
	if n == nil {
		return "", false
	}
	return strings.TrimSpace(n.text), true
}

func (n *node) findDescendant(name string) *node {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.findDescendant(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) findChild(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Parse reads the filing XML and returns one Document per logical fund.
// A single filing may carry several sub-fund blocks under one parent CNPJ;
// each block becomes its own Document. Class labels the sub-fund when the
// block declares one.
func Parse(data []byte) ([]*Document, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("parse filing: %w", err)
	}

	// Repeated same-name sibling blocks that each carry their own fund
	// identification are separate logical funds (sub-fund classes filed
	// under one parent CNPJ). Everything else is one single-fund filing.
	if blocks := findFundBlocks(root); len(blocks) > 1 {
		docs := make([]*Document, 0, len(blocks))
		for _, b := range blocks {
			docs = append(docs, &Document{root: b})
		}
		return docs, nil
	}
	return []*Document{{root: root}}, nil
}

func findFundBlocks(n *node) []*node {
	byName := make(map[string][]*node)
	for _, c := range n.children {
		byName[c.name] = append(byName[c.name], c)
	}
	for _, group := range byName {
		if len(group) < 2 {
			continue
		}
		identified := true
		for _, c := range group {
			if c.findDescendant("NR_CNPJ_FUNDO") == nil && c.findDescendant("DT_COMPT") == nil {
				identified = false
				break
			}
		}
		if identified {
			return group
		}
	}
	for _, c := range n.children {
		if blocks := findFundBlocks(c); blocks != nil {
			return blocks
		}
	}
	return nil
}

// Class returns the sub-fund class label declared by the filing block, or
// "" for a single-class fund.
func (d *Document) Class() string {
	if v, ok := d.Lookup("CLASS_SERIE"); ok {
		return v
	}
	return ""
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{name: ""}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: localName(t.Name)}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("document has no elements")
	}
	return root, nil
}

// localName strips the XML namespace, mirroring how the filings mix
// namespaced and bare tags.
func localName(name xml.Name) string {
	return name.Local
}
