package serialmux

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

var consoleTemplate = template.Must(template.New("console").Parse(`<!doctype html>
<html><head><title>{{.Name}} serial console</title>
<style>body{font-family:monospace;margin:1em}#tail{height:70vh;overflow:auto;background:#111;color:#9f9;padding:.5em}</style>
</head><body>
<h2>{{.Name}}</h2>
<form id="cmd"><input name="command" size="40" autofocus> <button>Send</button> <span id="status"></span></form>
<pre id="tail"></pre>
<script>
const tail = document.getElementById("tail");
const es = new EventSource("{{.Base}}tail");
es.onmessage = (e) => { tail.textContent += e.data + "\n"; tail.scrollTop = tail.scrollHeight; };
document.getElementById("cmd").onsubmit = async (e) => {
  e.preventDefault();
  const res = await fetch("{{.Base}}send-command-api", {method: "POST", body: new FormData(e.target)});
  document.getElementById("status").textContent = await res.text();
};
</script>
</body></html>
`))

// AttachAdminRoutes mounts a console, a command endpoint and a live SSE tail
// for m under /debug/serial/<name>/.
func AttachAdminRoutes(mux *http.ServeMux, m SerialMuxInterface) {
	debug := tsweb.Debugger(mux)
	base := "serial/" + m.Name() + "/"

	debug.HandleFunc(base+"console", fmt.Sprintf("%s serial console", m.Name()), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct{ Name, Base string }{m.Name(), "/debug/" + base}
		if err := consoleTemplate.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc(base+"send-command-api", func(w http.ResponseWriter, r *http.Request) {
		SendCommandHandler(m).ServeHTTP(w, r)
	})

	debug.HandleSilentFunc(base+"tail", func(w http.ResponseWriter, r *http.Request) {
		TailHandler(m).ServeHTTP(w, r)
	})
}

// SendCommandHandler writes the "command" form value to m.
func SendCommandHandler(m SerialMuxInterface) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := m.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to %s", command, m.Name()))
	})
}

// TailHandler streams lines from m as server-sent events.
func TailHandler(m SerialMuxInterface) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		io.WriteString(w, ": ping\n\n")
		flusher.Flush()

		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
