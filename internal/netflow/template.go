package netflow

import "fmt"

// templateField is one (type, length) pair from a Template FlowSet.
type templateField struct {
	Type   uint16
	Length uint16
}

// template is the decoded layout of one data record.
type template struct {
	Fields    []templateField
	RecordLen int
}

// templateCache stores templates keyed by (exporter, source id, template id).
// Owned exclusively by the collector task; no locking needed. Templates are
// overwritten when an exporter redefines an id and never expire.
type templateCache struct {
	templates map[string]*template
}

func newTemplateCache() *templateCache {
	return &templateCache{templates: make(map[string]*template)}
}

func templateKey(exporter string, sourceID uint32, templateID uint16) string {
	return fmt.Sprintf("%s/%d/%d", exporter, sourceID, templateID)
}

func (c *templateCache) put(exporter string, sourceID uint32, templateID uint16, t *template) {
	c.templates[templateKey(exporter, sourceID, templateID)] = t
}

func (c *templateCache) get(exporter string, sourceID uint32, templateID uint16) (*template, bool) {
	t, ok := c.templates[templateKey(exporter, sourceID, templateID)]
	return t, ok
}

func (c *templateCache) len() int {
	return len(c.templates)
}
