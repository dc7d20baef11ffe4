// Atlas is a conversational agent that answers questions about one person's
// professional record, behind a governance layer that checks every query's
// intent and every generated claim before it reaches the user.
//
// Usage:
//
//	# Interactive session with the default configuration
//	atlas chat
//
//	# One question, events as JSON lines
//	atlas ask --format json "What did you build at Acme?"
//
//	# Inspect a session and its evidence
//	atlas session show 5f0c...
//	atlas evidence query --session 5f0c... --format csv
//
//	# Check a pattern file before deploying it
//	atlas patterns lint patterns.yaml
package main

func main() {
	Execute()
}
