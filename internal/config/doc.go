// Package config defines the YAML settings of every device role and
// provides helpers to load, validate and save them.
//
// Each role embeds Common (Overseer address, twin shim address, network
// timeout, log level). Validate fills defaults in place, so a loaded
// configuration is always complete.
package config
