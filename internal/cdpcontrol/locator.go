package cdpcontrol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LocatorKind selects how a Locator resolves elements.
type LocatorKind string

const (
	KindCSS  LocatorKind = "css"
	KindID   LocatorKind = "id"
	KindText LocatorKind = "text"
)

// Locator identifies elements in the current document. Operations that act on
// a single element always use the first match in document order.
type Locator struct {
	Kind  LocatorKind `json:"kind"`
	Value string      `json:"value"`
}

// CSS locates elements by CSS selector.
func CSS(selector string) Locator { return Locator{Kind: KindCSS, Value: selector} }

// ID locates the element whose id attribute equals id exactly.
func ID(id string) Locator { return Locator{Kind: KindID, Value: id} }

// Text locates the innermost elements whose text contains s.
func Text(s string) Locator { return Locator{Kind: KindText, Value: s} }

func (l Locator) String() string {
	switch l.Kind {
	case KindID:
		return "#" + l.Value
	case KindText:
		return "text=" + l.Value
	default:
		return l.Value
	}
}

// Validate reports a VALIDATION error for empty or unknown locators.
func (l Locator) Validate() error {
	if strings.TrimSpace(l.Value) == "" {
		return newError(CodeValidation, "locator value is required", nil)
	}
	switch l.Kind {
	case KindCSS, KindID, KindText:
		return nil
	default:
		return newError(CodeValidation, fmt.Sprintf("unknown locator kind %q", l.Kind), nil)
	}
}

// Selector returns a CSS selector for CSS and ID locators. Ids are matched
// through an attribute selector so they need no CSS identifier escaping.
func (l Locator) Selector() (string, error) {
	switch l.Kind {
	case KindCSS:
		return l.Value, nil
	case KindID:
		return `[id="` + cssString(l.Value) + `"]`, nil
	default:
		return "", newError(CodeValidation, "locator "+l.String()+" has no CSS form", nil)
	}
}

func cssString(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return r.Replace(v)
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// jsVisibleHelper mirrors a browser's notion of a rendered element: a
// non-empty box and no visibility:hidden on the element.
const jsVisibleHelper = `
function _isVisible(el) {
  if (!el || !el.isConnected) return false;
  var style = window.getComputedStyle(el);
  if (style.visibility !== "visible") return false;
  var rect = el.getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
}
`

const jsTextMatchHelper = `
function _textMatches(needle) {
  var out = [];
  var walker = document.createTreeWalker(document.body || document.documentElement, NodeFilter.SHOW_TEXT);
  var seen = new Set();
  while (walker.nextNode()) {
    var node = walker.currentNode;
    if (node.nodeValue && node.nodeValue.indexOf(needle) !== -1) {
      var el = node.parentElement;
      if (el && !seen.has(el)) { seen.add(el); out.push(el); }
    }
  }
  if (out.length === 0) {
    var all = (document.body || document.documentElement).querySelectorAll("*");
    for (var i = 0; i < all.length; i++) {
      var e = all[i];
      if ((e.textContent || "").indexOf(needle) === -1) continue;
      var inner = false;
      for (var j = 0; j < e.children.length; j++) {
        if ((e.children[j].textContent || "").indexOf(needle) !== -1) { inner = true; break; }
      }
      if (!inner) out.push(e);
    }
  }
  return out;
}
`

// matchesExpr returns a JS expression evaluating to an array of the
// locator's matches in document order.
func (l Locator) matchesExpr() (string, error) {
	if err := l.Validate(); err != nil {
		return "", err
	}
	if l.Kind == KindText {
		return "_textMatches(" + jsString(l.Value) + ")", nil
	}
	sel, err := l.Selector()
	if err != nil {
		return "", err
	}
	return "Array.prototype.slice.call(document.querySelectorAll(" + jsString(sel) + "))", nil
}

// probeJS builds the script reporting match count and first-match visibility.
func (l Locator) probeJS() (string, error) {
	expr, err := l.matchesExpr()
	if err != nil {
		return "", err
	}
	return wrapJSEval(jsVisibleHelper + jsTextMatchHelper + `
var m = ` + expr + `;
return JSON.stringify({ok:true,data:{count:m.length,visible:m.length > 0 && _isVisible(m[0])}});`), nil
}

// attributeJS builds the script reading an attribute of the first match.
func (l Locator) attributeJS(name string) (string, error) {
	expr, err := l.matchesExpr()
	if err != nil {
		return "", err
	}
	return wrapJSEval(jsTextMatchHelper + `
var m = ` + expr + `;
if (m.length === 0) {
  return JSON.stringify({ok:false,error_code:"` + CodeElementNotFound + `",error_message:` + jsString("no element matches "+l.String()) + `});
}
var v = m[0].getAttribute(` + jsString(name) + `);
return JSON.stringify({ok:true,data:{present:v !== null,value:v === null ? "" : v}});`), nil
}

// wrapJSEval runs body inside the eval envelope. querySelectorAll throws a
// SyntaxError DOMException for a malformed selector; that is reported as
// VALIDATION since no amount of waiting fixes it.
func wrapJSEval(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
var code = err && err.name === "SyntaxError" ? "` + CodeValidation + `" : "` + CodeEvalFailure + `";
return JSON.stringify({ok:false,error_code:code,error_message:String(err && err.message || err)});
}
})()`
}
