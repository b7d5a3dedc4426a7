package engine

// templates holds the starter source seeded into a fresh document.
var templates = map[Engine]string{
	Mermaid:  "flowchart TD\n  A[Start] --> B[End]",
	PlantUML: "@startuml\nAlice -> Bob: Hello\nBob --> Alice: Hi\n@enduml",
	D2: `user: {shape: person}
web: {
  shape: rectangle
  style.fill: "#e3f2fd"
}
db: {
  shape: cylinder
  style.fill: "#ffccbc"
}

user -> web: "visit"
web -> db: "query"`,
	DBML:     "Table users {\n  id integer [pk]\n  name varchar\n}",
	Graphviz: "digraph G {\n  A -> B\n}",
	C4PlantUML: `@startuml
!include <C4/C4_Context>

Person(user, "User", "A user of the system")
System(system, "System", "The core system")

Rel(user, system, "Uses", "HTTPS")

LAYOUT_WITH_LEGEND()
@enduml`,
	Nomnoml: "[Hello] -> [World]",
	Erd:     "[Person]\n*name",
	Ditaa: `+--------+   +---------+   +-------+
| Start  |-->| Process |-->|  End  |
+--------+   +---------+   +-------+
                 |
                 v
            +---------+
            | Storage |
            +---------+`,
	Svgbob: `  .---.
 /     \
+  Box  +
 \     /
  '---'`,
	WaveDrom: `{ "signal": [
  { "name": "clk", "wave": "p......" },
  { "name": "data", "wave": "x.345x.", "data": ["A", "B", "C"] }
]}`,
	BlockDiag: `blockdiag {
  A -> B -> C;
  B -> D;
}`,
	SeqDiag: `seqdiag {
  browser -> webserver [label = "GET /index.html"];
  browser <-- webserver [label = "200 OK"];
  browser -> webserver [label = "POST /api/login"];
  browser <-- webserver [label = "JWT token"];
}`,
	NwDiag: `nwdiag {
  network dmz {
    address = "210.1.1.0/24";
    webserver [address = ".10"];
    firewall [address = ".1"];
  }
  network internal {
    address = "172.16.0.0/24";
    webserver [address = ".1"];
    database [address = ".100"];
    cache [address = ".50"];
  }
}`,
}

// Template returns the default starter source for e.
// Unknown engines fall back to the Mermaid template.
func Template(e Engine) string {
	if tmpl, ok := templates[e]; ok {
		return tmpl
	}
	return templates[Mermaid]
}
