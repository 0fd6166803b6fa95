package tools

// kindTable is the static name -> Kind mapping. Unknown names fall to
// KindOther. The caret dialect's read-only tool filter uses the same
// hard-coded-list approach; kept in one place so both can be driven from
// it if a future dialect needs it too.
var kindTable = map[string]Kind{
	"read_files":     KindRead,
	"list_files":     KindRead,
	"glob_files":     KindSearch,
	"search_files":   KindSearch,
	"web_search":     KindSearch,
	"web_fetch":      KindRead,
	"perplexity_ask": KindRead,
	"write_file":     KindEdit,
	"edit_file":      KindEdit,
	"run_command":    KindExecute,
	"update_plan":    KindOther,
	"spawn_agent":    KindExecute,
}

// KindOf returns the coarse UI category for a tool name.
func KindOf(name string) Kind {
	if k, ok := kindTable[name]; ok {
		return k
	}
	return KindOther
}
