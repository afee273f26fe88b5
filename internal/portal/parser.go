package portal

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

// resultTableClass marks the marks table on the portal result frame.
const resultTableClass = "tblBRDefault"

// rawRow is one table row before semester classification. Sem is the raw cell
// text; rows with unparsable semesters are dropped later.
type rawRow struct {
	Sem     string
	Subject model.Subject
}

// parseResultTable extracts the rows of the marks table from the portal's
// result markup. The first row is the header and is skipped. Missing trailing
// cells yield empty strings, matching what the portal renders for withheld
// entries.
func parseResultTable(body string) ([]rawRow, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	table := findResultTable(doc)
	if table == nil {
		return nil, nil
	}

	var rows []rawRow
	first := true
	walkRows(table, func(cells []string) {
		if first {
			first = false
			return
		}
		get := func(i int) string {
			if i < len(cells) {
				return strings.TrimSpace(cells[i])
			}
			return ""
		}
		rows = append(rows, rawRow{
			Sem: get(0),
			Subject: model.Subject{
				Code:    get(1),
				Subject: get(2),
				Credit:  get(3),
				Grade:   get(4),
				Point:   get(5),
				Result:  get(6),
			},
		})
	})

	return rows, nil
}

func findResultTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, resultTableClass) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if table := findResultTable(c); table != nil {
			return table
		}
	}
	return nil
}

func walkRows(table *html.Node, fn func(cells []string)) {
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, textContent(c))
				}
			}
			fn(cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}
