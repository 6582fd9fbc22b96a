package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Run Events · Docs Smoke</title>
  <style>
    body {
      margin: 0 auto;
      max-width: 860px;
      padding: 24px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 4px; }
    code { padding: 0 4px; }
    pre { padding: 12px; overflow-x: auto; }
    pre code { border: 0; padding: 0; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
  <p><a href="/docs">← API reference</a></p>
  <h1>Run Events</h1>
  <p>
    Progress of every run started through <code>POST /api/v1/runs</code> is published as it happens.
    Each event is a JSON object with a <code>type</code> of <code>run_started</code>,
    <code>step</code>, <code>check_done</code> or <code>run_finished</code>.
  </p>

  <h2 id="endpoints">Endpoints</h2>
  <table>
    <thead><tr><th>Transport</th><th>Path</th></tr></thead>
    <tbody>
      <tr><td>Server-Sent Events</td><td><code>GET /api/v1/events/sse</code></td></tr>
      <tr><td>WebSocket (one text frame per event)</td><td><code>GET /api/v1/events</code></td></tr>
    </tbody>
  </table>

  <h3>Query Parameters</h3>
  <table>
    <thead><tr><th>Name</th><th>Description</th></tr></thead>
    <tbody>
      <tr><td><code>types</code></td><td>Comma-separated event types to receive. Omit for all.</td></tr>
      <tr><td><code>run_id</code></td><td>Only events of this run.</td></tr>
    </tbody>
  </table>

  <h2 id="example">Example</h2>
  <pre><code>curl -N 'http://127.0.0.1:8190/api/v1/events/sse?types=step,run_finished'

event: step
data: {"type":"step","run_id":"…","check":"setup-guide","step":{"name":"navigate","status":"passed","duration_ms":412,"detail":"status 200"},"status":"passed","time":"…"}</code></pre>

  <p>
    Slow clients have events dropped rather than stalling the run. Fetch
    <code>GET /api/v1/runs/{run_id}</code> for the authoritative result.
  </p>
</body>
</html>`
