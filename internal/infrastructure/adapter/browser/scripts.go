package browser

import (
	"encoding/json"
	"fmt"
)

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// fetchScript returns an expression evaluating to the last window chat
// items as [{sender, body}]. A missing sender or content element yields an
// empty string.
func fetchScript(itemSel, senderSel, contentSel string, window int) string {
	if window < 1 {
		window = 1
	}
	return fmt.Sprintf(`(() => {
  const text = (root, sel) => {
    if (!sel) return "";
    const el = root.querySelector(sel);
    return el ? (el.innerText || el.textContent || "").trim() : "";
  };
  const items = Array.from(document.querySelectorAll(%s)).slice(-%d);
  return items.map(el => ({ sender: text(el, %s), body: text(el, %s) }));
})()`, jsString(itemSel), window, jsString(senderSel), jsString(contentSel))
}

// clearScript empties an input, textarea or contenteditable element and
// evaluates to whether the element exists
func clearScript(inputSel string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  if ("value" in el) { el.value = ""; } else { el.innerHTML = ""; }
  el.dispatchEvent(new Event("input", { bubbles: true }));
  return true;
})()`, jsString(inputSel))
}
