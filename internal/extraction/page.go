// internal/extraction/page.go
package extraction

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLines = regexp.MustCompile(`\n{3,}`)

// page is what a listing page contributes to the prompt.
type page struct {
	Title    string
	Image    string
	SiteName string
	Markdown string
}

type pageConverter struct {
	converter *md.Converter
}

func newPageConverter() *pageConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &pageConverter{converter: converter}
}

// convert reads the listing metadata and renders the main content as markdown.
func (c *pageConverter) convert(content []byte) (*page, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	p := &page{}
	readMeta(doc, p)

	removeElements(doc, map[string]bool{
		"script": true, "style": true, "noscript": true, "iframe": true,
		"nav": true, "footer": true, "header": true, "form": true, "svg": true,
	})

	root := findElement(doc, "main")
	if root == nil {
		root = findElement(doc, "body")
	}
	if root == nil {
		root = doc
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}

	markdown, err := c.converter.ConvertString(buf.String())
	if err != nil {
		return nil, err
	}
	p.Markdown = strings.TrimSpace(excessiveLines.ReplaceAllString(markdown, "\n\n"))
	return p, nil
}

func readMeta(doc *html.Node, p *page) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if p.Title == "" && n.FirstChild != nil {
					p.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				key := attr(n, "property")
				if key == "" {
					key = attr(n, "name")
				}
				value := strings.TrimSpace(attr(n, "content"))
				switch key {
				case "og:title":
					if value != "" {
						p.Title = value
					}
				case "og:image":
					if p.Image == "" {
						p.Image = value
					}
				case "og:site_name":
					p.SiteName = value
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func removeElements(n *html.Node, tags map[string]bool) {
	var remove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tags[node.Data] {
			remove = append(remove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range remove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}
