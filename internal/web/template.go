package web

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="30">
<title>Crowd Trader</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #11151c; color: #dde3ec; margin: 0; padding: 24px; }
  h1 { font-size: 20px; margin: 0 0 4px; }
  h2 { font-size: 14px; text-transform: uppercase; letter-spacing: .08em; color: #8b96a8; margin: 28px 0 8px; }
  .meta { color: #8b96a8; font-size: 13px; margin-bottom: 20px; }
  .cards { display: flex; gap: 16px; flex-wrap: wrap; }
  .card { background: #1a2029; border-radius: 8px; padding: 14px 18px; min-width: 150px; }
  .card .label { font-size: 12px; color: #8b96a8; }
  .card .value { font-size: 22px; margin-top: 4px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8b96a8; font-weight: 500; padding: 6px 10px; border-bottom: 1px solid #2a3342; }
  td { padding: 6px 10px; border-bottom: 1px solid #202733; }
  .buy { color: #4ade80; }
  .sell { color: #f87171; }
  .hold { color: #8b96a8; }
  .pos { color: #4ade80; }
  .neg { color: #f87171; }
  .mode { display: inline-block; padding: 2px 8px; border-radius: 4px; background: #2a3342; font-size: 12px; }
</style>
</head>
<body>
<h1>Crowd Trader <span class="mode">{{.Mode}}</span></h1>
<div class="meta">Watchlist: {{.Watchlist}}</div>

<div class="cards">
  <div class="card"><div class="label">Portfolio value</div><div class="value">${{money .Portfolio.TotalValue}}</div></div>
  <div class="card"><div class="label">Cash</div><div class="value">${{money .Portfolio.Cash}}</div></div>
  <div class="card"><div class="label">Realized P&amp;L</div>
    <div class="value {{if ge .Portfolio.RealizedPnL 0.0}}pos{{else}}neg{{end}}">${{money .Portfolio.RealizedPnL}}</div></div>
</div>

<h2>Open positions</h2>
<table>
  <tr><th>Asset</th><th>Quantity</th><th>Avg entry</th><th>Price</th><th>Unrealized P&amp;L</th><th>%</th></tr>
  {{range .Portfolio.Positions}}
  <tr>
    <td>{{.Asset}}</td>
    <td>{{.Quantity}}</td>
    <td>${{money .AvgEntryPrice}}</td>
    <td>${{money .CurrentPrice}}</td>
    <td class="{{if ge .UnrealizedPnL 0.0}}pos{{else}}neg{{end}}">${{money .UnrealizedPnL}}</td>
    <td class="{{if ge .PnLPercent 0.0}}pos{{else}}neg{{end}}">{{money .PnLPercent}}%</td>
  </tr>
  {{else}}
  <tr><td colspan="6">No open positions</td></tr>
  {{end}}
</table>

<h2>Recent signals</h2>
<table>
  <tr><th>Time</th><th>Product</th><th>Action</th><th>Confidence</th><th>Reasoning</th></tr>
  {{range .RecentSignals}}
  <tr>
    <td>{{ts .Timestamp}}</td>
    <td>{{.ProductID}}</td>
    <td class="{{.Action}}">{{.Action}}</td>
    <td>{{money .Confidence}}</td>
    <td>{{.Reasoning}}</td>
  </tr>
  {{else}}
  <tr><td colspan="5">No signals yet</td></tr>
  {{end}}
</table>

<h2>Recent trades</h2>
<table>
  <tr><th>Time</th><th>Product</th><th>Side</th><th>Price</th><th>Quantity</th><th>Total</th><th>P&amp;L</th></tr>
  {{range .RecentTrades}}
  <tr>
    <td>{{ts .Timestamp}}</td>
    <td>{{.ProductID}}</td>
    <td class="{{.Side}}">{{.Side}}</td>
    <td>${{money .Price}}</td>
    <td>{{.Quantity}}</td>
    <td>${{money .Total}}</td>
    <td class="{{if ge .RealizedPnL 0.0}}pos{{else}}neg{{end}}">${{money .RealizedPnL}}</td>
  </tr>
  {{else}}
  <tr><td colspan="7">No trades yet</td></tr>
  {{end}}
</table>
</body>
</html>
`
