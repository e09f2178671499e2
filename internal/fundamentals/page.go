package fundamentals

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"b3-tracker/internal/models"
)

// label locates one metric on a fund page: the first element of tag whose
// own text (or title attribute) satisfies match, followed in document order
// by a value element.
type label struct {
	field    string
	tag      atom.Atom
	title    bool
	match    func(string) bool
	valueTag atom.Atom
}

func equals(s string) func(string) bool {
	return func(v string) bool { return v == s }
}

func contains(s string) func(string) bool {
	return func(v string) bool { return strings.Contains(v, s) }
}

var pageLabels = []label{
	{field: models.FieldPrice, tag: atom.H3, match: equals("Valor atual"), valueTag: atom.Strong},
	{field: models.FieldDividendYield, tag: atom.Div, title: true, match: contains("Dividend Yield"), valueTag: atom.Strong},
	{field: models.FieldBookValue, tag: atom.H3, match: contains("Val. patrimonial"), valueTag: atom.Strong},
	{field: models.FieldPVP, tag: atom.H3, match: equals("P/VP"), valueTag: atom.Strong},
	{field: models.FieldMonthlyIncome, tag: atom.H3, match: contains("MENSAL MÉDIO"), valueTag: atom.Strong},
	{field: models.FieldDailyLiquidity, tag: atom.Span, match: contains("Liquidez média diária"), valueTag: atom.Strong},
	{field: models.FieldIFIXShare, tag: atom.H3, match: contains("IFIX"), valueTag: atom.Strong},
	{field: models.FieldCash, tag: atom.Span, match: contains("Valor em caixa"), valueTag: atom.Strong},
	{field: models.FieldNetWorth, tag: atom.Span, match: contains("Patrimônio"), valueTag: atom.Strong},
	{field: models.FieldQuotaholders, tag: atom.Span, match: contains("Número de cotistas"), valueTag: atom.Strong},
	{field: models.FieldQuotas, tag: atom.Span, match: contains("Número de cotas"), valueTag: atom.Strong},
	{field: models.FieldAppreciation12, tag: atom.Span, match: contains("Valorização 12 meses"), valueTag: atom.Strong},
	{field: models.FieldAppreciationM, tag: atom.Span, match: contains("Valorização no mês"), valueTag: atom.Strong},
	{field: models.FieldDYCAGR3Y, tag: atom.Span, match: contains("CAGR 3 anos"), valueTag: atom.Span},
	{field: models.FieldDYCAGR5Y, tag: atom.Span, match: contains("CAGR 5 anos"), valueTag: atom.Span},
}

// ParsePage extracts the raw metric strings of a fund page. Labels that are
// absent, or whose value is blank or "-", are left out of the map.
func ParsePage(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	nodes := elements(doc)

	raw := make(map[string]string, len(pageLabels))
	for _, l := range pageLabels {
		if v, ok := l.find(nodes); ok {
			raw[l.field] = v
		}
	}
	return raw, nil
}

func (l label) find(nodes []*html.Node) (string, bool) {
	for i, n := range nodes {
		if n.DataAtom != l.tag {
			continue
		}
		var text string
		if l.title {
			text = attr(n, "title")
		} else {
			text = ownText(n)
		}
		if !l.match(text) {
			continue
		}
		for _, m := range nodes[i+1:] {
			if m.DataAtom == l.valueTag && hasClass(m, "value") {
				v := strings.TrimSpace(textContent(m))
				if v == "" || v == "-" {
					return "", false
				}
				return v, true
			}
		}
		return "", false
	}
	return "", false
}

// elements lists element nodes in document order.
func elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// ownText joins the direct text children of n.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
