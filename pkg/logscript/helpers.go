package logscript

// helpersJS defines globalThis.log. Go helpers (parseTimestamp) are attached
// afterwards by installGoHelpers.
const helpersJS = `
(function(){
  function parseJSON(line) {
    try { return JSON.parse(line); } catch (e) { return null; }
  }

  // key=value pairs separated by spaces, values may be double quoted.
  function parseLogfmt(line) {
    if (typeof line !== "string") return null;
    const re = /([^\s=]+)(?:=("(?:[^"\\]|\\.)*"|\S*))?/g;
    const out = {};
    let m;
    while ((m = re.exec(line)) !== null) {
      let v = m[2];
      if (v === undefined) { out[m[1]] = true; continue; }
      if (v.length >= 2 && v[0] === '"') v = v.slice(1, -1).replace(/\\(.)/g, "$1");
      out[m[1]] = v;
    }
    return out;
  }

  function field(obj, path) {
    if (!obj || typeof path !== "string" || path === "") return null;
    let cur = obj;
    for (const p of path.split(".")) {
      if (cur == null) return null;
      cur = cur[p];
    }
    return (cur === undefined) ? null : cur;
  }

  globalThis.log = { parseJSON, parseLogfmt, field };
})();
`
