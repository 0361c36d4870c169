package export

// Document is a renderer-agnostic report layout: an ordered list of sections
// that CSV and PDF backends serialize without any aggregation logic of their
// own. Builders assemble documents; exporters only draw them.
type Document struct {
	Title    string
	Sections []Section
}

// Section is implemented by the block types a document may contain.
type Section interface {
	isSection()
}

// Heading renders a standalone line of emphasised text.
type Heading struct {
	Text  string
	Level int
}

// KeyValues renders an ordered block of label/value pairs.
type KeyValues struct {
	Pairs []Pair
}

// Pair is a single label/value entry.
type Pair struct {
	Label string
	Value string
}

// Table renders a captioned table with a fixed column order.
type Table struct {
	Caption string
	Headers []string
	Rows    [][]string
}

// Separator renders a visual break between blocks.
type Separator struct{}

func (Heading) isSection()   {}
func (KeyValues) isSection() {}
func (Table) isSection()     {}
func (Separator) isSection() {}

// AddHeading appends a heading section.
func (d *Document) AddHeading(text string, level int) {
	d.Sections = append(d.Sections, Heading{Text: text, Level: level})
}

// AddKeyValues appends an ordered key/value block.
func (d *Document) AddKeyValues(pairs ...Pair) {
	d.Sections = append(d.Sections, KeyValues{Pairs: pairs})
}

// AddTable appends a table section.
func (d *Document) AddTable(table Table) {
	d.Sections = append(d.Sections, table)
}

// AddSeparator appends a visual separator.
func (d *Document) AddSeparator() {
	d.Sections = append(d.Sections, Separator{})
}
