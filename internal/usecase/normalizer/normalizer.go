// Package normalizer turns the outer HTML of a captured element into a cleaned,
// annotated snapshot plus a table of fillable fields.
package normalizer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"formfill/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FillIDAttr annotates each field in the transmitted markup with its ID.
const FillIDAttr = "fill-id"

var (
	ErrNoRoot         = errors.New("markup has no root element")
	ErrMarkupTooLarge = errors.New("normalized markup exceeds size limit")
)

type Config struct {
	// TagsToRemove are dropped with their whole subtree.
	TagsToRemove []string
	// AttrsToRemove are stripped from every element of the copy.
	AttrsToRemove []string
	// SelectorExcludedAttrs never take part in a field selector.
	SelectorExcludedAttrs []string
	FieldTags             []string
	MaxMarkupSize         int
}

var DefaultConfig = Config{
	TagsToRemove:          []string{"svg", "script", "style"},
	AttrsToRemove:         []string{"class", "style"},
	SelectorExcludedAttrs: []string{"value", "class", FillIDAttr},
	FieldTags:             []string{"input", "textarea", "select"},
	MaxMarkupSize:         200_000,
}

type Normalizer struct {
	cfg Config
}

func New(cfg *Config) *Normalizer {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	return &Normalizer{cfg: *cfg}
}

// Normalize parses the outer HTML of a captured root and returns its snapshot.
// A snapshot without fields is not an error.
func (n *Normalizer) Normalize(markup string) (*entity.Snapshot, error) {
	root, err := parseRoot(markup)
	if err != nil {
		return nil, err
	}

	// Selectors and occurrences are computed against the untouched subtree, since
	// that is what the live page still contains.
	fieldNodes := n.collectFields(root)
	fields := make([]entity.Field, 0, len(fieldNodes))
	if len(fieldNodes) > 0 {
		scope := wrap(root)
		doc := goquery.NewDocumentFromNode(scope)
		for id, node := range fieldNodes {
			selector := BuildSelector(node, n.cfg.SelectorExcludedAttrs)
			fields = append(fields, entity.Field{
				ID:         id,
				Kind:       classify(node),
				Tag:        node.Data,
				InputType:  inputType(node),
				Selector:   selector,
				Occurrence: occurrence(doc, selector, node),
			})
		}
		unwrap(scope, root)
	}

	n.clean(root)
	for id, node := range fieldNodes {
		setAttr(node, FillIDAttr, strconv.Itoa(id))
		fields[id].RawMarkup = renderNode(node)
	}

	out := renderNode(root)
	if n.cfg.MaxMarkupSize > 0 && len(out) > n.cfg.MaxMarkupSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMarkupTooLarge, len(out), n.cfg.MaxMarkupSize)
	}

	return &entity.Snapshot{
		Markup: out,
		Fields: fields,
	}, nil
}

// collectFields walks root depth-first in document order, skipping removed subtrees.
func (n *Normalizer) collectFields(root *html.Node) []*html.Node {
	var result []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type != html.ElementNode {
			return
		}
		if isOneOf(node.Data, n.cfg.TagsToRemove...) {
			return
		}
		if isOneOf(node.Data, n.cfg.FieldTags...) {
			result = append(result, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return result
}

// clean removes comments and noisy subtrees and strips presentation attributes.
func (n *Normalizer) clean(node *html.Node) {
	if node.Type == html.CommentNode {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		return
	}
	if node.Type != html.ElementNode {
		return
	}

	if isOneOf(node.Data, n.cfg.TagsToRemove...) {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		return
	}

	node.Attr = filterAttributes(node.Attr, n.cfg.AttrsToRemove)

	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		n.clean(c)
		c = next
	}
}

func classify(node *html.Node) entity.FieldKind {
	switch node.Data {
	case "textarea":
		return entity.FieldKindTextarea
	case "select":
		return entity.FieldKindSelect
	case "input":
		if isOneOf(inputType(node), entity.TextInputTypes...) {
			return entity.FieldKindTextInput
		}
	}
	return entity.FieldKindOther
}

func inputType(node *html.Node) string {
	if node.Data != "input" {
		return ""
	}
	if v, ok := getAttr(node, "type"); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return "text"
}

// occurrence returns the index of node among the selector's matches in document order.
func occurrence(doc *goquery.Document, selector string, node *html.Node) int {
	for i, m := range doc.Find(selector).Nodes {
		if m == node {
			return i
		}
	}
	return 0
}

// parseRoot builds the element tree of markup exactly as its tags nest. The HTML5
// tree builder would reparent shapes a scripted DOM can hold and lose fields.
func parseRoot(markup string) (*html.Node, error) {
	z := html.NewTokenizer(strings.NewReader(markup))

	var root *html.Node
	var open []*html.Node
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize markup: %w", err)
			}
			if root == nil {
				return nil, ErrNoRoot
			}
			return root, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			node := elementNode(z)
			if root == nil {
				root = node
			} else {
				open[len(open)-1].AppendChild(node)
			}
			if tt == html.StartTagToken && !voidElements[node.Data] {
				open = append(open, node)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].Data == string(name) {
					open = open[:i]
					break
				}
			}

		case html.TextToken, html.CommentToken:
			if len(open) == 0 {
				continue
			}
			typ := html.TextNode
			if tt == html.CommentToken {
				typ = html.CommentNode
			}
			open[len(open)-1].AppendChild(&html.Node{Type: typ, Data: string(z.Text())})
		}

		// Anything after the root closes belongs to the page, not the capture.
		if root != nil && len(open) == 0 {
			return root, nil
		}
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "keygen": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// elementNode copies the current start tag. Repeated attributes keep the first value.
func elementNode(z *html.Tokenizer) *html.Node {
	name, hasAttr := z.TagName()
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     string(name),
		DataAtom: atom.Lookup(name),
	}
	seen := make(map[string]bool)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		node.Attr = append(node.Attr, html.Attribute{Key: string(key), Val: string(val)})
	}
	return node
}

// wrap gives a detached root a parent so that selector matching can include the root itself.
func wrap(root *html.Node) *html.Node {
	scope := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	scope.AppendChild(root)
	return scope
}

func unwrap(scope, root *html.Node) {
	scope.RemoveChild(root)
}

func filterAttributes(attrs []html.Attribute, remove []string) []html.Attribute {
	var kept []html.Attribute
	for _, attr := range attrs {
		if isOneOf(attr.Key, remove...) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
