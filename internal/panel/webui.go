package panel

// webUI is the panel page. The initial view is rendered server side; after
// that the page follows the /ws live view and posts actions to /api.
const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Arduino Control</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:8px}
.sdot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-gray{background:#9ca3af}

/* Layout */
.content{max-width:1000px;margin:0 auto;padding:20px;display:grid;grid-template-columns:1fr 1fr;gap:16px}
.card{background:#fff;border-radius:8px;padding:20px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
.wide{grid-column:1 / -1}

/* Buttons and forms */
.btn{display:inline-flex;align-items:center;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;transition:all .2s}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover{background:#5a67d8}
.btn-secondary{background:#e5e7eb;color:#374151}.btn-secondary:hover{background:#d1d5db}
.btn-sm{padding:4px 10px;font-size:12px}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:10px}
input[type=text],input[type=number],textarea{padding:6px 10px;border:1px solid #ddd;border-radius:6px;font-size:14px;width:100%}
input:focus,textarea:focus{outline:none;border-color:#667eea}
textarea{font-family:monospace;min-height:90px}
table{width:100%;border-collapse:collapse;margin-top:10px;font-size:13px}
td,th{padding:4px 6px;text-align:left}
.reading{font-family:monospace;font-weight:600}

/* Lists */
.list{list-style:none;max-height:260px;overflow-y:auto;font-family:monospace;font-size:12px}
.list li{padding:6px 8px;border-bottom:1px solid #f0f0f0;cursor:pointer}
.list li:hover{background:#f9fafb}
.list li.err{color:#991b1b;cursor:default}
.list .msg{color:#888;display:block}

/* Grid */
#grid{width:240px;height:240px;border:1px solid #ccc;position:relative;cursor:crosshair;background:
 linear-gradient(#ddd,#ddd) center/1px 100% no-repeat,linear-gradient(#ddd,#ddd) center/100% 1px no-repeat,#fafafa}
#grid-dot{position:absolute;pointer-events:none;width:8px;height:8px;border-radius:50%;background:#667eea;transform:translate(-50%,-50%)}
.grid-opts{display:grid;grid-template-columns:repeat(4,1fr);gap:6px;margin-top:10px;font-size:12px}

/* Toast */
.toast{position:fixed;top:60px;left:50%;transform:translateX(-50%);padding:12px 20px;border-radius:6px;color:#fff;font-size:14px;z-index:200;box-shadow:0 4px 12px rgba(0,0,0,.15)}
.toast-success{background:#22c55e}.toast-error{background:#ef4444}.toast-info{background:#667eea}

/* Modal */
.modal-overlay{position:fixed;inset:0;background:rgba(0,0,0,.4);display:flex;align-items:center;justify-content:center;z-index:150}
.modal{background:#fff;border-radius:8px;padding:24px;max-width:600px;width:90%;box-shadow:0 8px 24px rgba(0,0,0,.2)}
</style>
</head>
<body>
<div class="hdr">
 <h1>Arduino Control</h1>
 <div class="hdr-right"><span id="conn-dot" class="sdot dot-gray"></span><span id="conn-state-text">{{.View.Connection}}</span></div>
</div>

<div class="content">
 <div class="card">
  <h2>Connection</h2>
  <div class="btn-row">
   <button class="btn btn-primary" onclick="act('/api/connect')">Connect</button>
   <button class="btn btn-secondary" onclick="act('/api/reconnect')">Reconnect</button>
   <button class="btn btn-secondary" onclick="act('/api/disconnect')">Disconnect</button>
   <button class="btn btn-secondary" onclick="act('/api/comtest')">Comtest</button>
  </div>
  <div class="btn-row">
   <label><input type="checkbox" id="verbose-checkbox" onchange="act('/api/verbose',{value:this.checked})"{{if .View.Verbose}} checked{{end}}> Verbose</label>
   <button class="btn btn-secondary btn-sm" onclick="act('/api/calibration/toggle')">Calibration</button>
  </div>
 </div>

 <div class="card">
  <h2>Command history</h2>
  <ul class="list" id="comm-msg-hist-list"></ul>
 </div>

 <div class="card">
  <h2>Set outputs</h2>
  <input type="text" id="vset-batch" placeholder="pins, values, settling  e.g. 3 9, 100 200, 500">
  <div class="btn-row"><button class="btn btn-primary" onclick="act('/api/vset',{text:val('vset-batch')})">VSet</button></div>
  <table>
   <tr><th>Pin</th><th>Value</th><th>Settling</th><th></th></tr>
   {{range $i, $p := .View.WritePins}}<tr><td>{{$p}}</td><td><input type="number" id="vset-value-{{$i}}" min="0" max="255"></td><td><input type="number" id="vset-settling-{{$i}}" min="0"></td>
   <td><button class="btn btn-secondary btn-sm" onclick="vsetRow({{$i}})">Set</button></td></tr>
   {{end}}
  </table>
 </div>

 <div class="card">
  <h2>Read inputs</h2>
  <input type="text" id="vread-batch" placeholder="pins  e.g. 0 1 2 3">
  <div class="btn-row"><button class="btn btn-primary" onclick="act('/api/vread',{text:val('vread-batch')})">VRead</button></div>
  <table>
   <tr><th>Pin</th><th>Value</th><th></th></tr>
   {{range $i, $p := .View.ReadPins}}<tr><td>A{{$p}}</td><td class="reading vread-value">{{index $.View.Readings $i}}</td>
   <td><button class="btn btn-secondary btn-sm" onclick="act('/api/vread/{{$i}}')">Read</button></td></tr>
   {{end}}
  </table>
 </div>

 <div class="card">
  <h2>Grid</h2>
  <div id="grid" onclick="gridClick(event)"><div id="grid-dot"></div></div>
  <div class="grid-opts">
   <label>X <input type="number" id="grid-x" value="{{.View.Grid.X}}"></label>
   <label>Y <input type="number" id="grid-y" value="{{.View.Grid.Y}}"></label>
   <label>Settling <input type="number" id="grid-settling" value="{{.View.Grid.Settling}}"></label>
   <label>Resolution <input type="number" id="grid-resolution" value="{{.View.Grid.Resolution}}"></label>
   <label>Right <input type="number" id="grid-right" value="{{.View.Grid.Right}}"></label>
   <label>Top <input type="number" id="grid-top" value="{{.View.Grid.Top}}"></label>
   <label>Left <input type="number" id="grid-left" value="{{.View.Grid.Left}}"></label>
   <label>Bottom <input type="number" id="grid-bottom" value="{{.View.Grid.Bottom}}"></label>
  </div>
  <div class="btn-row">
   <label><input type="checkbox" id="autosend-checkbox" onchange="gridOptions()"{{if .View.Grid.Autosend}} checked{{end}}> Autosend</label>
   <button class="btn btn-secondary btn-sm" onclick="gridOptions()">Apply</button>
   <button class="btn btn-primary btn-sm" onclick="gridSend()">Send</button>
   <button class="btn btn-secondary btn-sm" onclick="act('/api/grid/reset')">Reset</button>
  </div>
 </div>

 <div class="card">
  <h2>Scripts</h2>
  <textarea id="script-textbox" placeholder='{"fname": "script_test"}'></textarea>
  <div class="btn-row"><button class="btn btn-primary" onclick="act('/api/script',{text:val('script-textbox')})">Run</button></div>
  <ul class="list" id="script-history-list"></ul>
 </div>
</div>

<div id="toast-root"></div>
<div id="modal-root"></div>

<script>
var flashTimeout = {{.FlashTimeout}};
var lastFlash = '';
var lastVersion = 0;

function val(id) { return document.getElementById(id).value; }
function num(id) { return Number(val(id)); }

function act(url, body) {
 var opts = {method: 'POST'};
 if (body !== undefined) {
  opts.headers = {'Content-Type': 'application/json'};
  opts.body = JSON.stringify(body);
 }
 return send(url, opts);
}

function send(url, opts) {
 return fetch(url, opts).then(function(r){return r.json()}).then(function(data) {
  if (data.view) render(data.view);
  else if (data.error) toast(data.error, 'error');
  return data;
 }).catch(function(){ toast('Server connection error', 'error'); });
}

function vsetRow(i) {
 act('/api/vset/' + i, {value: val('vset-value-' + i), settling: val('vset-settling-' + i)});
}

function gridClick(e) {
 var el = document.getElementById('grid');
 var box = el.getBoundingClientRect();
 act('/api/grid/click', {x: e.clientX - box.left, y: e.clientY - box.top, size: box.width});
}

function gridOptions() {
 return send('/api/grid/options', {method: 'PUT', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({
  right: num('grid-right'), top: num('grid-top'), left: num('grid-left'), bottom: num('grid-bottom'),
  settling: num('grid-settling'), resolution: num('grid-resolution'),
  autosend: document.getElementById('autosend-checkbox').checked
 })});
}

function gridSend() {
 act('/api/grid/point', {x: num('grid-x'), y: num('grid-y')}).then(function(){ act('/api/grid/send'); });
}

function replay(id) { act('/api/history/' + id + '/replay'); }

function loadScript(id) {
 fetch('/api/scripts/' + id).then(function(r){return r.json()}).then(function(data) {
  if (data.text !== undefined) document.getElementById('script-textbox').value = data.text;
 });
}

function render(v) {
 if (v.version <= lastVersion) return;
 lastVersion = v.version;
 var conn = document.getElementById('conn-state-text');
 conn.textContent = v.connection;
 document.getElementById('conn-dot').className = 'sdot ' +
  (v.connection === 'Connected' ? 'dot-green' : v.connection ? 'dot-red' : 'dot-gray');

 var cells = document.querySelectorAll('.vread-value');
 for (var i = 0; i < cells.length && i < v.readings.length; i++) cells[i].textContent = v.readings[i];

 var hist = document.getElementById('comm-msg-hist-list');
 hist.innerHTML = '';
 (v.history || []).forEach(function(e) {
  var li = document.createElement('li');
  li.textContent = e.label;
  var msg = document.createElement('span');
  msg.className = 'msg';
  msg.textContent = e.message || '';
  li.appendChild(msg);
  if (e.command) { li.title = e.command; li.onclick = function(){ replay(e.id); }; }
  else li.className = 'err';
  hist.appendChild(li);
 });

 var scripts = document.getElementById('script-history-list');
 scripts.innerHTML = '';
 (v.scripts || []).forEach(function(s) {
  var li = document.createElement('li');
  li.textContent = s.text;
  li.onclick = function(){ loadScript(s.id); };
  scripts.appendChild(li);
 });

 document.getElementById('grid-x').value = v.grid.x;
 document.getElementById('grid-y').value = v.grid.y;
 document.getElementById('autosend-checkbox').checked = v.grid.autosend;
 var dot = document.getElementById('grid-dot');
 dot.style.left = ((v.grid.x + 100) / 2) + '%';
 dot.style.top = ((100 - v.grid.y) / 2) + '%';
 document.getElementById('verbose-checkbox').checked = v.verbose;

 var modal = document.getElementById('modal-root');
 if (v.calibration.open) {
  if (!modal.innerHTML) {
   modal.innerHTML = '<div class="modal-overlay" onclick="if(event.target===this)act(\'/api/calibration/toggle\')"><div class="modal"></div></div>';
   modal.querySelector('.modal').innerHTML = v.calibration.html;
  }
 } else {
  modal.innerHTML = '';
 }

 if (v.flash && v.flash.expires !== lastFlash) {
  lastFlash = v.flash.expires;
  toast(v.flash.text, v.flash.kind);
 }
}

function toast(msg, type) {
 var root = document.getElementById('toast-root');
 root.innerHTML = '';
 var el = document.createElement('div');
 el.className = 'toast toast-' + (type || 'success');
 el.textContent = msg;
 root.appendChild(el);
 setTimeout(function() { el.remove(); }, flashTimeout);
}

function connectLive() {
 var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
 var ws = new WebSocket(proto + location.host + '/ws');
 ws.onmessage = function(e) {
  var msg = JSON.parse(e.data);
  if (msg.type === 'view') render(msg.view);
 };
 ws.onclose = function() { setTimeout(connectLive, 2000); };
}

act('/api/refresh');
connectLive();
</script>
</body>
</html>`
