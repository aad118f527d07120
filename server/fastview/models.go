// fastview builds server-side views that are pushed to the page over a websocket:
// a data model is converted to a view-model, broadcast to each view, and every view
// turns its view-model into element updates.
package fastview

import (
	"html/template"
)

// EleUpdate names a page element and the operations to apply to it.
type EleUpdate struct {
	EleId string
	// Op keys are attribute names, except the reserved 'textContent' which sets the element text.
	Ops []Op
}

// Op sets Key to Value.
type Op struct {
	Key   string
	Value string
}

// TEXT_CONTENT is the reserved Op key for an element's text.
const TEXT_CONTENT = "textContent"

// ViewComponent is a server-side view. Parse adds the view's template to the parent and
// returns the name to invoke it by; Updates streams element updates for the rendered page.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	Parse(*template.Template) (string, error)
}
