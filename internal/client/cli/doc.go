// Package cli implements the amocli command tree.
//
// Every subcommand loads configuration (see package config), builds an App
// that owns the HTTP client, service registry, optional mirror store,
// optional S3 archive and metrics recorder, runs one operation and then
// closes the App, pushing metrics when a Pushgateway is configured.
//
// Records are read and written as JSON lines:
//
//	amocli list leads --where status=142 --all
//	amocli find contacts 1001 1002
//	amocli add contacts --file new.jsonl
//	amocli update contacts --file changes.jsonl
//	amocli export leads --all
package cli
