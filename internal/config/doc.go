// Package config defines the settings of a bootstrap run and provides
// helpers to load, validate and save them in YAML format.
//
// Values come from the built-in defaults, an optional YAML file and
// CODE_WINSTALLER_* environment variables, each layer overriding the previous.
package config
