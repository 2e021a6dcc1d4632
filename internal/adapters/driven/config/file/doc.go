// Package file implements the ConfigStore port with a TOML file.
//
// A partial config file only overrides the fields it mentions; everything
// else falls back to the built-in defaults, so a fresh install runs with
// no config file at all.
package file
