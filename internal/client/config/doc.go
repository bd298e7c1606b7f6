// Package config loads runtime configuration for the amocli tool.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file passed with --config.
//  3. Environment variables prefixed with AMO_, with dots replaced by
//     underscores (AMO_DOMAIN, AMO_MIRROR_DSN, AMO_LIMITS_ADD).
//  4. Command-line flags registered by RegisterFlags, when set explicitly.
//
// # File schema
//
// Durations accept Go duration strings:
//
//	domain: example
//	zone: ru
//	login: admin@example.com
//	timeout: 30s
//	limits:
//	  add: 300
//	  update: 300
//	  rows: 500
//	mirror:
//	  driver: sqlite
//	  dsn: /var/lib/amocli/mirror.db
//	archive:
//	  bucket: crm-exports
//	  path_style: true
package config
