// Package config provides the configuration of a crawl: the target host,
// credentials, crawl limits, connection settings and report preferences.
// Values come from defaults, an optional YAML file and CLI flags, in that
// order of precedence.
package config
