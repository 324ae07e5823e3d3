package api

import (
	"html/template"
	"sort"
	"strings"

	"spreadwatch/internal/memorystore"
)

type dashboardRow struct {
	Instrument string
	State      memorystore.InstrumentState
}

type dashboardPage struct {
	SourceA     string
	SourceB     string
	Rows        []dashboardRow
	Instruments []string
}

func newDashboardPage(sources SourceNames, snap memorystore.Snapshot) dashboardPage {
	page := dashboardPage{
		SourceA: strings.ToUpper(sources.A),
		SourceB: strings.ToUpper(sources.B),
	}
	for inst, state := range snap.Data {
		page.Rows = append(page.Rows, dashboardRow{Instrument: inst, State: state})
		page.Instruments = append(page.Instruments, inst)
	}
	sort.Slice(page.Rows, func(i, j int) bool { return page.Rows[i].Instrument < page.Rows[j].Instrument })
	sort.Strings(page.Instruments)
	return page
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
  <title>💹 Spread Dashboard</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <style>
    body { font-family: Arial, sans-serif; background: #111; color: #ddd; text-align: center; }
    table { margin: 20px auto; border-collapse: collapse; width: 80%; }
    th, td { border: 1px solid #333; padding: 8px; }
    th { background: #222; }
    .green { color: #00ff7f; }
    .red { color: #ff5050; }
    form { margin: 20px; }
    canvas { max-width: 600px; margin: 20px auto; display: block; }
  </style>
</head>
<body>
<h1>💹 {{.SourceA}} ↔ {{.SourceB}} Spread</h1>
<table>
<tr><th>Pair</th><th>{{.SourceA}}</th><th>{{.SourceB}}</th><th>Spread (%)</th><th>Chart</th><th>Remove</th></tr>
{{range $i, $r := .Rows}}
<tr>
<td>{{$r.Instrument}}</td>
<td id="a_{{$i}}">{{printf "%.5f" $r.State.PriceA}}</td>
<td id="b_{{$i}}">{{printf "%.5f" $r.State.PriceB}}</td>
<td id="s_{{$i}}" class="{{if gt $r.State.SpreadPercent 0.0}}green{{else}}red{{end}}">{{printf "%.2f" $r.State.SpreadPercent}}</td>
<td><canvas id="chart_{{$i}}"></canvas></td>
<td><a href="/remove?pair={{$r.Instrument}}">❌</a></td>
</tr>
{{end}}
</table>

<form action="/add" method="post">
<input name="pair" placeholder="e.g. BTC/USDT" required>
<button type="submit">➕ Add pair</button>
</form>

<script>
const pairs = {{.Instruments}} || [];
function render(res) {
  pairs.forEach((p, i) => {
    const s = (res.data || {})[p];
    if (s) {
      document.getElementById("a_" + i).textContent = s.price_a.toFixed(5);
      document.getElementById("b_" + i).textContent = s.price_b.toFixed(5);
      const cell = document.getElementById("s_" + i);
      cell.textContent = s.spread_percent.toFixed(2);
      cell.className = s.spread_percent > 0 ? "green" : "red";
    }
    const ctx = document.getElementById("chart_" + i);
    if (!ctx) return;
    const h = (res.history || {})[p] || [];
    const labels = h.map(e => new Date(e.timestamp).toLocaleTimeString());
    const data = h.map(e => e.spread_percent);
    if (!ctx.chart) {
      ctx.chart = new Chart(ctx, {
        type: "line",
        data: { labels, datasets: [{ label: p + " Spread %", data, borderColor: "#00ff7f", tension: 0.3 }] },
        options: { animation: false, scales: { x: { ticks: { color: "#aaa" } }, y: { ticks: { color: "#aaa" } } } }
      });
    } else {
      ctx.chart.data.labels = labels;
      ctx.chart.data.datasets[0].data = data;
      ctx.chart.update();
    }
  });
}
function poll() { fetch("/data").then(r => r.json()).then(render); }
function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = e => render(JSON.parse(e.data));
  ws.onclose = () => setTimeout(connect, 4000);
}
poll();
if ("WebSocket" in window) { connect(); } else { setInterval(poll, 4000); }
</script>
</body>
</html>
`
