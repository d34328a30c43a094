package render

import (
	"html/template"
	"io"

	"cloudmask/internal/errors"
)

// mapTemplate is a standalone Leaflet page with a layer control; each tile
// layer keeps its own visibility, opacity and zoom floor.
const mapTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>cloudmask</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var overlays = {};
{{range .Layers}}
var layer = L.tileLayer({{.URL}}, {
  opacity: {{.Opacity}},
  minZoom: {{$.MinZoom}},
  attribution: 'Imagery &copy; image processing service'
});
overlays[{{.Name}}] = layer;
{{if .Shown}}layer.addTo(map);{{end}}
{{end}}
L.control.layers(null, overlays).addTo(map);
</script>
</body>
</html>
`

var mapTmpl = template.Must(template.New("map").Parse(mapTemplate))

// WriteHTML renders the map as a standalone HTML page.
func (m *Map) WriteHTML(w io.Writer) error {
	if err := mapTmpl.Execute(w, m); err != nil {
		return errors.Render("writing map page", err)
	}
	return nil
}
